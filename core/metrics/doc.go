// Package metrics defines the sinks that observe the dispatch lifecycle.
// Sinks like the Prometheus and InfluxDB implementations in infra/metrics
// record status transitions, assignments, crew notifications and roster
// snapshots. Optional capabilities are discovered through the *Recorder
// interfaces so a sink only implements what it stores. Several sinks are
// combined with NewMultiSink, which the factory does automatically when more
// than one sink is configured.
package metrics
