//go:build !no_containers

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/app"
	"github.com/stasyk411/gbr/config"
	"github.com/stasyk411/gbr/core/factory"
	"github.com/stasyk411/gbr/core/metrics"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/infra/mqtt"
	"github.com/stasyk411/gbr/infra/store"
	"github.com/stasyk411/gbr/test/util"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

type apiClient struct {
	t    *testing.T
	base string
}

func (c apiClient) do(method, path string, body, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("X-User-ID", "1001")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func waitHealthy(t *testing.T, base string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)
}

// crew subscribes to its alert topic, acknowledges every alert and forwards
// replies to the returned channels.
func crew(t *testing.T, broker, handle string) (paho.Client, <-chan map[string]any, <-chan map[string]any) {
	t.Helper()
	cli := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("crew-" + handle))
	tok := cli.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	alerts := make(chan map[string]any, 4)
	replies := make(chan map[string]any, 4)
	tok = cli.Subscribe("gbr/crew/"+handle+"/alert", 1, func(c paho.Client, m paho.Message) {
		var a map[string]any
		if json.Unmarshal(m.Payload(), &a) != nil {
			return
		}
		ack, _ := json.Marshal(map[string]any{"notification_id": a["notification_id"]})
		c.Publish("gbr/crew/"+handle+"/ack", 1, false, ack)
		alerts <- a
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	tok = cli.Subscribe("gbr/crew/"+handle+"/reply", 1, func(_ paho.Client, m paho.Message) {
		var r map[string]any
		if json.Unmarshal(m.Payload(), &r) == nil {
			replies <- r
		}
	})
	require.True(t, tok.WaitTimeout(5*time.Second))
	return cli, alerts, replies
}

func receive(t *testing.T, ch <-chan map[string]any) map[string]any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for crew message")
		return nil
	}
}

func TestServiceEndToEnd(t *testing.T) {
	util.SkipWithoutDocker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto: %v", err)
	}
	defer cleanup()

	dir := t.TempDir()
	apiAddr, promAddr := freeAddr(t), freeAddr(t)
	cfg := &config.Config{
		Dispatcher: config.DispatcherConfig{ID: "1001"},
		Store:      store.Config{Backend: store.BackendSQLite, DSN: filepath.Join(dir, "gbr.db")},
		API:        config.APIConfig{Address: apiAddr},
		MQTT:       mqtt.Config{Broker: broker, ClientID: "gbr-e2e", RequireAck: true, QoS: map[string]byte{"alert": 1, "ack": 1, "status": 1, "reply": 1}},
		Metrics: metrics.Config{
			PrometheusAddress: promAddr,
			Sinks:             []factory.ModuleConfig{{Type: "prometheus"}},
		},
		Journal: config.JournalConfig{Backend: "sqlite", Path: filepath.Join(dir, "journal.db")},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := app.New(ctx, cfg)
	require.NoError(t, err)
	defer svc.Close()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	base := "http://" + apiAddr
	waitHealthy(t, base)
	api := apiClient{t: t, base: base}

	cli, alerts, replies := crew(t, broker, "42")
	defer cli.Disconnect(100)

	var unit model.Unit
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/units", map[string]any{"name": "Crew-A", "contact_handle": "42"}, &unit))
	var call model.Call
	require.Equal(t, http.StatusCreated, api.do(http.MethodPost, "/api/calls", map[string]any{
		"object_name": "Store X", "address": "Lenina 5", "latitude": 55.75, "longitude": 37.61,
	}, &call))

	var assigned struct {
		Call     model.Call `json:"call"`
		Notified bool       `json:"notified"`
	}
	require.Equal(t, http.StatusOK, api.do(http.MethodPost, fmt.Sprintf("/api/calls/%d/assign", call.ID), map[string]any{"unit_id": unit.ID}, &assigned))
	assert.True(t, assigned.Notified)
	assert.Equal(t, model.CallAssigned, assigned.Call.Status)

	alert := receive(t, alerts)
	assert.Equal(t, "Store X", alert["object_name"])
	assert.Len(t, alert["links"], 2)

	cli.Publish("gbr/crew/42/status", 1, false, []byte(`{"text":"🏁 Прибыл"}`))
	reply := receive(t, replies)
	assert.Equal(t, "🏁 Статус изменён: Прибыл на место", reply["text"])
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, fmt.Sprintf("/api/units/%d", unit.ID), nil, &unit))
	assert.Equal(t, model.UnitArrived, unit.Status)

	mctx, mcancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer mcancel()
	require.NoError(t, util.WaitForMetric(mctx, "http://"+promAddr+"/metrics", `gbr_call_assignments_total{reassigned="false"} 1`))

	var recs []map[string]any
	require.Eventually(t, func() bool {
		api.do(http.MethodGet, fmt.Sprintf("/api/journal?call_id=%d", call.ID), nil, &recs)
		return len(recs) >= 3
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
}
