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
	"github.com/robfig/cron/v3"

	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/metrics"
	"github.com/stasyk411/gbr/infra/geocode"
	"github.com/stasyk411/gbr/infra/mqtt"
	"github.com/stasyk411/gbr/infra/store"
)

// EnvPrefix marks environment overrides. GBR_MQTT__BROKER sets mqtt.broker.
const EnvPrefix = "GBR_"

type Config struct {
	Dispatcher DispatcherConfig `json:"dispatcher"`
	Store      store.Config     `json:"store"`
	Dispatch   dispatch.Config  `json:"dispatch"`
	API        APIConfig        `json:"api"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Geocode    geocode.Config   `json:"geocode"`
	Metrics    metrics.Config   `json:"metrics"`
	Journal    JournalConfig    `json:"journal"`
	Sentry     SentryConfig     `json:"sentry"`
}

// Load reads the configuration file at path and applies environment
// overrides. An empty path loads the environment only.
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
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// SetDefaults fills unset values of every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Journal.SetDefaults()
	if c.MQTT.Enabled() {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(c.Dispatcher); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	switch c.Geocode.Provider {
	case "", "dadata", "google":
	default:
		return fmt.Errorf("geocode: unknown provider %s", c.Geocode.Provider)
	}
	if c.Metrics.RosterSchedule != "" {
		if _, err := cron.ParseStandard(c.Metrics.RosterSchedule); err != nil {
			return fmt.Errorf("metrics: roster_schedule: %w", err)
		}
	}
	return nil
}
