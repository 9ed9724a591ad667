// Package loader reads and writes QPU program images.
//
// Two formats are supported: the text dump format, one 0x-prefixed 64-bit
// hex word per line, and raw little-endian binary (".bin").
package loader

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ErrMalformed is returned for image files that cannot be parsed.
var ErrMalformed = errors.New("malformed program image")

// WordSize is the size of one instruction word in bytes.
const WordSize = 8

// Image is a sequence of encoded instruction words in program order.
type Image struct {
	// Words holds the machine words.
	Words []uint64
}

// Len returns the number of instructions in the image.
func (img *Image) Len() int {
	return len(img.Words)
}

// Bytes returns the image as little-endian bytes.
func (img *Image) Bytes() []byte {
	buf := make([]byte, len(img.Words)*WordSize)
	for i, w := range img.Words {
		binary.LittleEndian.PutUint64(buf[i*WordSize:], w)
	}
	return buf
}

// ParseText reads the text dump format. Blank lines and lines starting
// with '#' are skipped.
func ParseText(r io.Reader) (*Image, error) {
	img := &Image{}
	scanner := bufio.NewScanner(r)
	line := 0

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
			return nil, fmt.Errorf("%w: line %d: missing 0x prefix", ErrMalformed, line)
		}
		w, err := strconv.ParseUint(text[2:], 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		img.Words = append(img.Words, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program image: %w", err)
	}

	return img, nil
}

// ParseBinary reads raw little-endian words.
func ParseBinary(data []byte) (*Image, error) {
	if len(data)%WordSize != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of %d", ErrMalformed, len(data), WordSize)
	}

	img := &Image{Words: make([]uint64, len(data)/WordSize)}
	for i := range img.Words {
		img.Words[i] = binary.LittleEndian.Uint64(data[i*WordSize:])
	}
	return img, nil
}

// WriteText writes the image in the text dump format.
func (img *Image) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, word := range img.Words {
		if _, err := fmt.Fprintf(bw, "0x%016x\n", word); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func isBinary(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".bin")
}

// Load reads a program image, choosing the format by file extension.
func Load(fs afero.Fs, path string) (*Image, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program image: %w", err)
	}

	if isBinary(path) {
		return ParseBinary(data)
	}
	return ParseText(strings.NewReader(string(data)))
}

// Save writes a program image, choosing the format by file extension.
func Save(fs afero.Fs, path string, img *Image) error {
	if isBinary(path) {
		if err := afero.WriteFile(fs, path, img.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write program image: %w", err)
		}
		return nil
	}

	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create program image: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := img.WriteText(f); err != nil {
		return fmt.Errorf("failed to write program image: %w", err)
	}
	return nil
}
