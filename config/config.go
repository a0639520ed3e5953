package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config controls how the kernel lays out physical memory and user address
// spaces.
type Config struct {
	// Frames is the number of physical page frames.
	Frames int `yaml:"frames"`

	// TLBEntries sizes each address space's translation cache. Zero disables
	// it.
	TLBEntries int `yaml:"tlb_entries"`

	CodePages    int `yaml:"code_pages"`
	StackPages   int `yaml:"stack_pages"`
	MaxHeapPages int `yaml:"max_heap_pages"`

	LogLevel string `yaml:"log_level"`
}

func Default() *Config {
	return &Config{
		Frames:       4096,
		TLBEntries:   64,
		CodePages:    4,
		StackPages:   2,
		MaxHeapPages: 256,
		LogLevel:     "info",
	}
}

var ErrInvalidConfig = errors.New("invalid config")

func (c *Config) Validate() error {
	switch {
	case c.Frames <= 0:
		return errors.Wrapf(ErrInvalidConfig, "frames must be positive, got %d", c.Frames)
	case c.TLBEntries < 0:
		return errors.Wrapf(ErrInvalidConfig, "tlb_entries must not be negative, got %d", c.TLBEntries)
	case c.CodePages <= 0:
		return errors.Wrapf(ErrInvalidConfig, "code_pages must be positive, got %d", c.CodePages)
	case c.StackPages <= 0:
		return errors.Wrapf(ErrInvalidConfig, "stack_pages must be positive, got %d", c.StackPages)
	case c.MaxHeapPages < 0:
		return errors.Wrapf(ErrInvalidConfig, "max_heap_pages must not be negative, got %d", c.MaxHeapPages)
	}

	return nil
}

// Load reads a YAML config from filePath. Fields missing from the file keep
// their defaults.
func Load(filePath string) (*Config, error) {
	config := Default()

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", filePath)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
