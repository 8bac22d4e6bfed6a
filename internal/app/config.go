package app

import (
	coreconfig "github.com/m3rciful/cpabot/core/config"
	coredatabase "github.com/m3rciful/cpabot/core/database"
)

// ContentConfig tunes the content store.
type ContentConfig struct {
	// ProxyTitle is the title of the section that carries the proxy request text.
	ProxyTitle string `yaml:"proxy_title" envconfig:"PROXY_SECTION_TITLE"`
	// SeedDefaults fills an empty store with the starter sections.
	SeedDefaults bool `yaml:"seed_defaults" envconfig:"SEED_DEFAULT_SECTIONS"`
}

// Config is the full application configuration: the shared core settings plus
// storage and content options.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Content  ContentConfig       `yaml:"content"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads YAML from path, applies environment overrides and validates the result.
// A missing file is allowed so the bot can run from environment variables alone.
func LoadConfig(path string) (*Config, error) {
	cfg := Config{Content: ContentConfig{SeedDefaults: true}}

	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
