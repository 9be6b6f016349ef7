package metrics

import "github.com/stasyk411/gbr/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddress enables the /metrics endpoint when set, e.g. ":9090".
	PrometheusAddress string `json:"prometheus_address"`
	// RosterSchedule is a cron expression for roster snapshots. Empty
	// disables them.
	RosterSchedule string `json:"roster_schedule"`
}
