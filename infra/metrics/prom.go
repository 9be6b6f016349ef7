package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/stasyk411/gbr/core/metrics"
)

// PromSink records lifecycle events in Prometheus metrics.
type PromSink struct {
	transitions   *prometheus.CounterVec
	assignments   *prometheus.CounterVec
	notifyLatency *prometheus.HistogramVec
	roster        *prometheus.GaugeVec
}

// NewPromSink registers lifecycle metrics on the default Prometheus
// registerer. The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	transitions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gbr_status_transitions_total",
		Help: "Status writes by entity and target status",
	}, []string{"entity", "from", "to"}))
	if err != nil {
		return nil, err
	}
	assignments, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gbr_call_assignments_total",
		Help: "Call assignments, split by first assignment and reassignment",
	}, []string{"reassigned"}))
	if err != nil {
		return nil, err
	}
	latency, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gbr_crew_notification_latency_seconds",
		Help:    "Time to deliver a crew alert",
		Buckets: prometheus.DefBuckets,
	}, []string{"delivered"}))
	if err != nil {
		return nil, err
	}
	roster, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gbr_roster_size",
		Help: "Units and calls by status at the last roster snapshot",
	}, []string{"entity", "status"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{transitions: transitions, assignments: assignments, notifyLatency: latency, roster: roster}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.Entity, ev.From, ev.To).Inc()
	return nil
}

// RecordAssignment increments the assignment counter.
func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(strconv.FormatBool(ev.Reassigned)).Inc()
	return nil
}

// RecordNotification observes the alert latency.
func (s *PromSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	s.notifyLatency.WithLabelValues(strconv.FormatBool(ev.Delivered)).Observe(ev.Latency.Seconds())
	return nil
}

// RecordRoster sets the roster gauges.
func (s *PromSink) RecordRoster(snap coremetrics.RosterSnapshot) error {
	for status, n := range snap.Units {
		s.roster.WithLabelValues("unit", status).Set(float64(n))
	}
	for status, n := range snap.Calls {
		s.roster.WithLabelValues("call", status).Set(float64(n))
	}
	return nil
}
