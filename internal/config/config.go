package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger struct {
		Verbosity string `yaml:"verbosity"`
	} `yaml:"logger"`
	Metrics struct {
		ListenAddress string `yaml:"listenAddress"`
	} `yaml:"metrics"`
	Provider struct {
		Devices       []int  `yaml:"devices"`
		Allocator     string `yaml:"allocator"` // "raw" or "pooled"
		PinnedStaging bool   `yaml:"pinnedStaging"`
	} `yaml:"provider"`
}

// Default returns the configuration used when no file is supplied: one
// pooled allocator on device 0 with pinned staging enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.Logger.Verbosity = "info"
	cfg.Metrics.ListenAddress = ":9090"
	cfg.Provider.Devices = []int{0}
	cfg.Provider.Allocator = "pooled"
	cfg.Provider.PinnedStaging = true
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := Default()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Provider.Allocator {
	case "raw", "pooled":
	default:
		return fmt.Errorf("unknown allocator kind %q", c.Provider.Allocator)
	}
	if len(c.Provider.Devices) == 0 {
		return fmt.Errorf("provider needs at least one device")
	}
	for _, d := range c.Provider.Devices {
		if d < 0 {
			return fmt.Errorf("invalid device ordinal %d", d)
		}
	}
	return nil
}
