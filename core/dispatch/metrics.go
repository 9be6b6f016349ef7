package dispatch

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stasyk411/gbr/core/model"
	coremon "github.com/stasyk411/gbr/core/monitoring"
)

var (
	operationLatency   *prometheus.HistogramVec
	operationErrors    *prometheus.CounterVec
	assignmentsTotal   prometheus.Counter
	notificationsTotal *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gbr_operation_duration_seconds",
			Help:    "Duration of lifecycle operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	errs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gbr_operation_errors_total",
			Help: "Lifecycle operations that failed, by error kind",
		},
		[]string{"operation", "kind"},
	)
	asn := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gbr_assignments_total",
			Help: "Number of committed call assignments",
		},
	)
	notif := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gbr_crew_notifications_total",
			Help: "Crew alerts sent after assignment, by result",
		},
		[]string{"result"},
	)
	return lat, errs, asn, notif
}

func init() {
	operationLatency, operationErrors, assignmentsTotal, notificationsTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers lifecycle metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(operationLatency, operationErrors, assignmentsTotal, notificationsTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	operationLatency, operationErrors, assignmentsTotal, notificationsTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// observe records latency and failures of op. Storage failures are also
// reported to the error monitor.
func observe(op string, start time.Time, err error) {
	operationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	operationErrors.WithLabelValues(op, model.KindOf(err)).Inc()
	if errors.Is(err, model.ErrStorage) {
		coremon.CaptureException(err, map[string]string{"module": "dispatch", "operation": op})
	}
}
