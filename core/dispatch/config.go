package dispatch

import "time"

// Config defines lifecycle policy settings.
type Config struct {
	// StrictTransitions limits call status changes to forward moves and makes
	// COMPLETED terminal.
	StrictTransitions bool `json:"strict_transitions"`
	// AllowBusyAssignment lets a unit that already serves an active call be
	// assigned another one.
	AllowBusyAssignment bool `json:"allow_busy_assignment"`
	// NotifyTimeoutSeconds bounds crew notification after assignment.
	NotifyTimeoutSeconds int `json:"notify_timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.NotifyTimeoutSeconds <= 0 {
		c.NotifyTimeoutSeconds = 10
	}
}

func (c Config) notifyTimeout() time.Duration {
	if c.NotifyTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}
