package config

import (
	"fmt"
	"strings"
)

// DispatcherConfig identifies the operator allowed to use the dispatcher API.
type DispatcherConfig struct {
	// ID is matched against the X-User-ID request header.
	ID string `json:"id"`
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token string `json:"token"`
}

// APIConfig defines the dispatcher HTTP listener.
type APIConfig struct {
	// Address enables the API when set, e.g. ":8080".
	Address     string   `json:"address"`
	CORSOrigins []string `json:"cors_origins"`
}

// Enabled reports whether the HTTP API should be served.
func (c APIConfig) Enabled() bool { return c.Address != "" }

// Validate checks that an enabled API has a dispatcher identity.
func (c APIConfig) Validate(d DispatcherConfig) error {
	if !c.Enabled() {
		return nil
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("api: dispatcher.id is required when api.address is set")
	}
	return nil
}
