package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/metrics"
)

// EnvPrefix marks the environment variables overriding file settings.
// K_FARM__SEED=7 sets farm.seed.
const EnvPrefix = "K_"

type Config struct {
	Farm       farm.Config      `json:"farm"`
	Simulation SimulationConfig `json:"simulation"`
	Storage    StorageConfig    `json:"storage"`
	Metrics    metrics.Config   `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
	Sentry     SentryConfig     `json:"sentry"`
	Baseline   BaselineConfig   `json:"baseline"`
	Weather    WeatherConfig    `json:"weather"`
	API        APIConfig        `json:"api"`
}

// Default returns the configuration used for every key absent from the
// file and the environment.
func Default() Config {
	return Config{
		Farm:     farm.DefaultConfig(),
		Storage:  DefaultStorage(),
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Baseline: DefaultBaseline(),
		Weather:  DefaultWeather(),
	}
}

// Load reads the file at path, applies environment overrides and validates
// the result. An empty path loads the defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills the fields whose zero value is not meaningful and links
// the farm and run start times.
func (c *Config) SetDefaults() {
	if c.Farm.Start.IsZero() {
		c.Farm.Start = c.Simulation.Start
	}
	if c.Simulation.Start.IsZero() {
		c.Simulation.Start = c.Farm.Start
	}
	c.Farm.SetDefaults()
	c.Simulation.SetDefaults()
	c.Storage.SetDefaults()
	c.Logging.SetDefaults()
	c.Baseline.SetDefaults()
	c.Weather.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Farm.Validate(); err != nil {
		return fmt.Errorf("farm: %w", err)
	}
	if err := c.Simulation.Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if c.Simulation.Start.Before(c.Farm.Start) {
		return fmt.Errorf("simulation: start before farm start")
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Baseline.Validate(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	if err := c.Weather.Validate(); err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	return nil
}
