package driver

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
)

// Duration is a time.Duration written as a string ("10s") in config files
// and environment variables.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds the driver settings.
type Config struct {
	// CodeAreaSize is the number of bytes reserved for programs.
	// Default: 1MB.
	CodeAreaSize uint32 `json:"code_area_size" envconfig:"V3D_CODE_AREA_SIZE"`

	// DataAreaSize is the number of bytes reserved for data buffers.
	// Default: 32MB.
	DataAreaSize uint32 `json:"data_area_size" envconfig:"V3D_DATA_AREA_SIZE"`

	// Timeout bounds a single Execute call. Default: 10s.
	Timeout Duration `json:"timeout" envconfig:"V3D_TIMEOUT"`

	// DevicePath is the DRM node of the GPU. Default: /dev/dri/card0.
	DevicePath string `json:"device_path" envconfig:"V3D_DEVICE"`
}

// DefaultConfig returns a Config with the default area sizes.
func DefaultConfig() *Config {
	return &Config{
		CodeAreaSize: 1024 * 1024,
		DataAreaSize: 32 * 1024 * 1024,
		Timeout:      Duration(10 * time.Second),
		DevicePath:   "/dev/dri/card0",
	}
}

// Apply overrides c with every non-zero field of other.
func (c Config) Apply(other Config) Config {
	if other.CodeAreaSize != 0 {
		c.CodeAreaSize = other.CodeAreaSize
	}
	if other.DataAreaSize != 0 {
		c.DataAreaSize = other.DataAreaSize
	}
	if other.Timeout != 0 {
		c.Timeout = other.Timeout
	}
	if other.DevicePath != "" {
		c.DevicePath = other.DevicePath
	}
	return c
}

// FromEnv reads the V3D_* variables through lookup.
func FromEnv(lookup func(key string) (string, bool)) (Config, error) {
	var env Config
	if err := envconfig.Process("", &env, lookup); err != nil {
		return Config{}, fmt.Errorf("failed to read driver environment: %w", err)
	}
	return env, nil
}

// LoadConfig loads a Config from a JSON file. Missing fields keep their
// defaults.
func LoadConfig(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read driver config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse driver config: %w", err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON file.
func (c *Config) SaveConfig(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize driver config: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write driver config file: %w", err)
	}

	return nil
}

// Validate checks that the areas are usable.
func (c *Config) Validate() error {
	if c.CodeAreaSize == 0 {
		return fmt.Errorf("code_area_size must be > 0")
	}
	if c.CodeAreaSize%8 != 0 {
		return fmt.Errorf("code_area_size must be a multiple of 8")
	}
	if c.DataAreaSize == 0 {
		return fmt.Errorf("data_area_size must be > 0")
	}
	if uint64(c.CodeAreaSize)+uint64(c.DataAreaSize) > 1<<31 {
		return fmt.Errorf("code_area_size + data_area_size must be <= 2GB")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
