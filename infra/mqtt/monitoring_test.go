package mqtt

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremon "github.com/stasyk411/gbr/core/monitoring"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) CapturePanic(any, map[string]string) {}
func (r *recordMonitor) Flush(time.Duration)                 {}

func TestNotifyErrorCaptured(t *testing.T) {
	mc := useMockClient(t)
	mc.publishErrs = []error{fmt.Errorf("net fail"), fmt.Errorf("net fail")}
	mon := &recordMonitor{}
	coremon.Init(mon)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })

	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	n, err := NewNotifier(cli)
	require.NoError(t, err)
	err = n.Notify(context.Background(), "@crew_a", testAlert())
	require.Error(t, err)
	assert.Len(t, mc.published, 2)
	require.NotNil(t, mon.err)
	assert.Equal(t, "mqtt", mon.tags["module"])
	assert.Equal(t, "@crew_a", mon.tags["contact"])
	assert.Equal(t, "3", mon.tags["call_id"])
}
