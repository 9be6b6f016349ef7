// Package geocode holds the geocoding providers selectable from
// configuration.
package geocode

import (
	"fmt"
	"time"

	"github.com/stasyk411/gbr/core/factory"
	"github.com/stasyk411/gbr/core/geocode"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is "dadata", "google" or empty to disable geocoding.
	Provider       string `json:"provider"`
	APIKey         string `json:"api_key"`
	URL            string `json:"url"`
	Language       string `json:"language"`
	Region         string `json:"region"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

var registry = factory.NewRegistry[geocode.Geocoder]()

func init() {
	registry.MustRegister("dadata", func(conf map[string]any) (geocode.Geocoder, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.APIKey == "" {
			return nil, fmt.Errorf("dadata: api_key is required")
		}
		return NewDaData(c.URL, c.APIKey, c.timeout()), nil
	})
	registry.MustRegister("google", func(conf map[string]any) (geocode.Geocoder, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewGoogle(c.APIKey, c.URL, c.Language, c.Region, c.timeout())
	})
}

// New builds the configured provider. An empty provider yields
// geocode.Disabled.
func New(cfg Config) (geocode.Geocoder, error) {
	if cfg.Provider == "" {
		return geocode.Disabled{}, nil
	}
	return registry.Create(factory.ModuleConfig{Type: cfg.Provider, Conf: map[string]any{
		"api_key":         cfg.APIKey,
		"url":             cfg.URL,
		"language":        cfg.Language,
		"region":          cfg.Region,
		"timeout_seconds": cfg.TimeoutSeconds,
	}})
}
