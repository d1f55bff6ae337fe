// Package config loads the settings for the blockfs binary: a YAML file,
// then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

const (
	envVarPrefix = "BLOCKFS"
	appName      = "blockfs"
)

type Config struct {
	Image      string `envconfig:"BLOCKFS_IMAGE"      yaml:"image"`
	Mountpoint string `envconfig:"BLOCKFS_MOUNTPOINT" yaml:"mountpoint"`
	FSName     string `envconfig:"BLOCKFS_FSNAME"     yaml:"fsName"`
	Debug      uint64 `envconfig:"BLOCKFS_DEBUG"      yaml:"debug"`
	ReadOnly   bool   `envconfig:"BLOCKFS_READ_ONLY"  yaml:"readOnly"`
}

// File is the config file path: $BLOCKFS_CONFIG_FILE, else
// ~/.config/blockfs.yaml.
func File() string {
	if f := os.Getenv(envVarPrefix + "_CONFIG_FILE"); f != "" {
		return f
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// Load reads the config file if there is one and applies the environment on
// top. A missing file is not an error.
func Load() (*Config, error) {
	var c Config
	if f := File(); f != "" {
		data, err := os.ReadFile(f)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.UnmarshalStrict(data, &c); err != nil {
				return nil, fmt.Errorf("unmarshaling config file `%s`: %w", f, err)
			}
		}
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if c.FSName == "" {
		c.FSName = appName
	}
	return &c, nil
}

// Validate checks the fields every command needs. Mounting also needs
// ValidateMount.
func (c *Config) Validate() error {
	if c.Image == "" {
		return missing("image", "IMAGE")
	}
	return nil
}

func (c *Config) ValidateMount() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Mountpoint == "" {
		return missing("mountpoint", "MOUNTPOINT")
	}
	return nil
}

func missing(y, e string) error {
	return fmt.Errorf("missing required configuration: %s / %s_%s", y, envVarPrefix, e)
}
