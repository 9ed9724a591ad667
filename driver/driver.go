// Package driver runs assembled QPU programs on a V3D device.
//
// A Driver owns one device allocation split into a code area, where
// programs are uploaded back to back, and a data area, where word buffers
// are handed out. Both areas only grow; close the driver to reclaim them.
package driver

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/v3dqpu/asm"
	"github.com/sarchlab/v3dqpu/device"
	"github.com/sarchlab/v3dqpu/device/v3d"
)

// Driver errors.
var (
	ErrCodeTooLarge = errors.New("code too large")
	ErrDataTooLarge = errors.New("data too large")
	ErrClosed       = errors.New("driver closed")
)

// Driver manages the code and data areas of one device allocation.
type Driver struct {
	dev    device.Device
	cfg    *Config
	logger logrus.FieldLogger

	mem      device.Memory
	codeNext uint32
	dataNext uint32
	closed   bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default logs to stderr at info level.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// New creates a driver on dev. A nil cfg uses DefaultConfig.
func New(dev device.Device, cfg *Config, opts ...Option) (*Driver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid driver config: %w", err)
	}

	d := &Driver{
		dev: dev,
		cfg: cfg.Clone(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.InfoLevel)
		d.logger = logger
	}

	size := cfg.CodeAreaSize + cfg.DataAreaSize
	mem, err := dev.Alloc(size)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d bytes of device memory: %w", size, err)
	}
	d.mem = mem

	d.logger.WithFields(logrus.Fields{
		"handle":    mem.Handle(),
		"phys_addr": fmt.Sprintf("0x%08x", mem.PhysAddr()),
		"code_size": cfg.CodeAreaSize,
		"data_size": cfg.DataAreaSize,
	}).Debug("Allocated device memory")

	return d, nil
}

// Open opens the V3D node named by cfg and creates a driver on it. The
// device is closed together with the driver.
func Open(cfg *Config, opts ...Option) (*Driver, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	dev, err := v3d.Open(cfg.DevicePath)
	if err != nil {
		return nil, err
	}
	d, err := New(dev, cfg, opts...)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return d, nil
}

// Config returns a copy of the driver configuration.
func (d *Driver) Config() *Config {
	return d.cfg.Clone()
}

// Code is a program uploaded to the code area.
type Code struct {
	Addr  uint32   // Device address of the first instruction
	Words []uint64 // Encoded instructions
}

// Len returns the number of instructions.
func (c *Code) Len() int {
	return len(c.Words)
}

// Program assembles k and uploads it to the code area.
func (d *Driver) Program(k asm.Kernel) (*Code, error) {
	if d.closed {
		return nil, ErrClosed
	}

	prog, err := asm.Assemble(k)
	if err != nil {
		return nil, err
	}
	data, err := prog.Bytes()
	if err != nil {
		return nil, err
	}

	size := uint64(len(data))
	if uint64(d.codeNext)+size > uint64(d.cfg.CodeAreaSize) {
		return nil, fmt.Errorf("%w: %d bytes, %d left", ErrCodeTooLarge,
			size, d.cfg.CodeAreaSize-d.codeNext)
	}
	if _, err := d.mem.WriteAt(data, int64(d.codeNext)); err != nil {
		return nil, fmt.Errorf("failed to upload program: %w", err)
	}

	words, err := prog.Words()
	if err != nil {
		return nil, err
	}
	code := &Code{
		Addr:  d.mem.PhysAddr() + d.codeNext,
		Words: words,
	}
	d.codeNext += uint32(size)

	d.logger.WithFields(logrus.Fields{
		"addr":         fmt.Sprintf("0x%08x", code.Addr),
		"instructions": code.Len(),
	}).Debug("Uploaded program")

	return code, nil
}

// Buffer is an array of 32-bit words in the data area.
type Buffer struct {
	Addr uint32 // Device address of the first word
	Len  int    // Number of words

	d      *Driver
	offset uint32
}

// Alloc reserves n words in the data area. The words start zeroed only if
// the device memory was.
func (d *Driver) Alloc(n int) (*Buffer, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, fmt.Errorf("buffer length must be > 0, got %d", n)
	}

	size := uint64(n) * 4
	if uint64(d.dataNext)+size > uint64(d.cfg.DataAreaSize) {
		return nil, fmt.Errorf("%w: %d bytes, %d left", ErrDataTooLarge,
			size, d.cfg.DataAreaSize-d.dataNext)
	}

	offset := d.cfg.CodeAreaSize + d.dataNext
	buf := &Buffer{
		Addr:   d.mem.PhysAddr() + offset,
		Len:    n,
		d:      d,
		offset: offset,
	}
	d.dataNext += uint32(size)

	return buf, nil
}

// Addresses returns the device address of every word.
func (b *Buffer) Addresses() []uint32 {
	addrs := make([]uint32, b.Len)
	for i := range addrs {
		addrs[i] = b.Addr + uint32(i)*4
	}
	return addrs
}

// Write stores vals starting at word 0.
func (b *Buffer) Write(vals ...uint32) error {
	if len(vals) > b.Len {
		return fmt.Errorf("%w: %d words into a buffer of %d", ErrDataTooLarge, len(vals), b.Len)
	}
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	if _, err := b.d.mem.WriteAt(data, int64(b.offset)); err != nil {
		return fmt.Errorf("failed to write buffer: %w", err)
	}
	return nil
}

// Read returns every word of the buffer.
func (b *Buffer) Read() ([]uint32, error) {
	data := make([]byte, b.Len*4)
	if _, err := b.d.mem.ReadAt(data, int64(b.offset)); err != nil {
		return nil, fmt.Errorf("failed to read buffer: %w", err)
	}
	vals := make([]uint32, b.Len)
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return vals, nil
}

// WriteFloat32 stores vals as IEEE 754 words starting at word 0.
func (b *Buffer) WriteFloat32(vals ...float32) error {
	words := make([]uint32, len(vals))
	for i, v := range vals {
		words[i] = math.Float32bits(v)
	}
	return b.Write(words...)
}

// ReadFloat32 returns every word of the buffer as a float32.
func (b *Buffer) ReadFloat32() ([]float32, error) {
	words, err := b.Read()
	if err != nil {
		return nil, err
	}
	vals := make([]float32, len(words))
	for i, w := range words {
		vals[i] = math.Float32frombits(w)
	}
	return vals, nil
}

// Execute runs code with the given uniform stream and waits for it. A nil
// uniforms buffer runs without uniforms. A zero timeout uses the configured
// one.
func (d *Driver) Execute(ctx context.Context, code *Code, uniforms *Buffer, timeout time.Duration) error {
	if d.closed {
		return ErrClosed
	}
	if timeout == 0 {
		timeout = time.Duration(d.cfg.Timeout)
	}

	cfg := device.CSDConfig{Shader: code.Addr}
	if uniforms != nil {
		cfg.Uniforms = uniforms.Addr
	}
	job := device.Job{
		Config:  cfg,
		Handles: []uint32{d.mem.Handle()},
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := d.logger.WithFields(logrus.Fields{
		"shader":   fmt.Sprintf("0x%08x", cfg.Shader),
		"uniforms": fmt.Sprintf("0x%08x", cfg.Uniforms),
	})
	log.Debug("Submitting job")

	start := time.Now()
	if err := d.dev.Submit(ctx, job); err != nil {
		log.WithError(err).Warn("Job failed")
		return err
	}
	log.WithField("elapsed", time.Since(start)).Debug("Job completed")

	return nil
}

// DumpProgram assembles k and writes one hex word per line.
func (d *Driver) DumpProgram(w io.Writer, k asm.Kernel) error {
	prog, err := asm.Assemble(k)
	if err != nil {
		return err
	}
	words, err := prog.Words()
	if err != nil {
		return err
	}
	for _, word := range words {
		if _, err := fmt.Fprintf(w, "0x%016x\n", word); err != nil {
			return err
		}
	}
	return nil
}

// Close frees the device memory and closes the device.
func (d *Driver) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	err := d.dev.Free(d.mem)
	if cerr := d.dev.Close(); err == nil {
		err = cerr
	}
	return err
}
