package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models gigline.yml.
type Config struct {
	Marketplace struct {
		Name string `yaml:"name"`
	} `yaml:"marketplace"`
	Listing struct {
		DefaultPageSize int `yaml:"default_page_size"`
	} `yaml:"listing"`
	Defaults struct {
		Public *bool `yaml:"public"`
	} `yaml:"defaults"`
	Notifications struct {
		From string `yaml:"from"`
	} `yaml:"notifications"`
	Catalog struct {
		Technologies map[string]CatalogEntry `yaml:"technologies"`
		Types        map[string]CatalogEntry `yaml:"types"`
	} `yaml:"catalog"`
}

type CatalogEntry struct {
	Name string `yaml:"name"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run gl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Marketplace.Name == "" {
		return fmt.Errorf("config.marketplace.name is required")
	}
	if c.Listing.DefaultPageSize < 1 {
		return fmt.Errorf("config.listing.default_page_size must be >= 1")
	}
	for id, entry := range c.Catalog.Technologies {
		if id == "" {
			return fmt.Errorf("config.catalog.technologies contains empty id")
		}
		if entry.Name == "" {
			return fmt.Errorf("technology %s has empty name", id)
		}
	}
	for id, entry := range c.Catalog.Types {
		if id == "" {
			return fmt.Errorf("config.catalog.types contains empty id")
		}
		if entry.Name == "" {
			return fmt.Errorf("activity type %s has empty name", id)
		}
	}
	return nil
}

// DefaultPublic returns the default visibility for new activities.
func (c *Config) DefaultPublic() bool {
	if c.Defaults.Public == nil {
		return true
	}
	return *c.Defaults.Public
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "gigline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

// Default returns the default Config struct.
func Default(name string) *Config {
	var cfg Config
	cfg.Marketplace.Name = name
	cfg.Listing.DefaultPageSize = 10
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, name))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `marketplace:
  name: %s

listing:
  default_page_size: 10

defaults:
  public: true

notifications:
  from: noreply@gigline.local

catalog:
  technologies:
    go:
      name: "Go"
    php:
      name: "PHP"
    js:
      name: "JavaScript"
    java:
      name: "Java"
    python:
      name: "Python"

  types:
    development:
      name: "Development"
    design:
      name: "Design"
    internal:
      name: "Internal project"
    training:
      name: "Training"
`
