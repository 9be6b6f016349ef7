package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/stasyk411/gbr/core/metrics"
)

type lineRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (l *lineRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		l.mu.Lock()
		l.bodies = append(l.bodies, strings.TrimSpace(string(data)))
		l.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestInfluxSink(t *testing.T, l *lineRecorder) *InfluxSink {
	srv := l.server(t)
	s := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	t.Cleanup(s.Close)
	return s
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSinkRecordTransition(t *testing.T) {
	l := &lineRecorder{}
	sink := newTestInfluxSink(t, l)
	now := time.Now()
	require.NoError(t, sink.RecordTransition(coremetrics.TransitionEvent{Entity: "call", ID: 4, From: "pending", To: "assigned", Time: now}))

	p := write.NewPointWithMeasurement("status_transition").
		AddTag("entity", "call").
		AddTag("to", "assigned").
		AddField("id", int64(4)).
		AddField("from", "pending").
		SetTime(now)
	require.Len(t, l.bodies, 1)
	assert.Equal(t, line(p), l.bodies[0])
}

func TestInfluxSinkRecordNotification(t *testing.T) {
	l := &lineRecorder{}
	sink := newTestInfluxSink(t, l)
	now := time.Now()
	require.NoError(t, sink.RecordNotification(coremetrics.NotificationEvent{
		CallID: 1, UnitID: 2, Delivered: false, Latency: 1500 * time.Microsecond, Error: "timeout", Time: now,
	}))
	p := write.NewPointWithMeasurement("crew_notification").
		AddTag("delivered", "false").
		AddField("call_id", int64(1)).
		AddField("unit_id", int64(2)).
		AddField("latency_ms", 1.5).
		AddField("error", "timeout").
		SetTime(now)
	require.Len(t, l.bodies, 1)
	assert.Equal(t, line(p), l.bodies[0])
}

func TestInfluxSinkRecordRoster(t *testing.T) {
	l := &lineRecorder{}
	sink := newTestInfluxSink(t, l)
	require.NoError(t, sink.RecordRoster(coremetrics.RosterSnapshot{
		Units: map[string]int{"free": 2},
		Calls: map[string]int{},
		Time:  time.Now(),
	}))
	require.Len(t, l.bodies, 1)
	assert.True(t, strings.HasPrefix(l.bodies[0], "roster,entity=unit free=2i"), l.bodies[0])
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
