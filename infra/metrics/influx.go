package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/stasyk411/gbr/core/metrics"
	"github.com/stasyk411/gbr/infra/logger"
)

// InfluxSink writes lifecycle events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordTransition writes a status change point.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	p := write.NewPointWithMeasurement("status_transition").
		AddTag("entity", ev.Entity).
		AddTag("to", ev.To).
		AddField("id", ev.ID).
		AddField("from", ev.From).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordAssignment writes an assignment point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("call_assigned").
		AddTag("reassigned", strconv.FormatBool(ev.Reassigned)).
		AddField("call_id", ev.CallID).
		AddField("unit_id", ev.UnitID).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordNotification writes a crew alert outcome.
func (s *InfluxSink) RecordNotification(ev coremetrics.NotificationEvent) error {
	p := write.NewPointWithMeasurement("crew_notification").
		AddTag("delivered", strconv.FormatBool(ev.Delivered)).
		AddField("call_id", ev.CallID).
		AddField("unit_id", ev.UnitID).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		AddField("error", ev.Error).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordRoster writes one point per entity with a field per status.
func (s *InfluxSink) RecordRoster(snap coremetrics.RosterSnapshot) error {
	for _, e := range []struct {
		entity string
		counts map[string]int
	}{{"unit", snap.Units}, {"call", snap.Calls}} {
		if len(e.counts) == 0 {
			continue
		}
		p := write.NewPointWithMeasurement("roster").AddTag("entity", e.entity).SetTime(snap.Time)
		for status, n := range e.counts {
			p.AddField(status, n)
		}
		if err := s.write(p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the client resources.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
