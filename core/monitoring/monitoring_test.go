package monitoring

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	errs   []error
	panics []any
	tags   map[string]string
	done   chan struct{}
}

func (r *recorder) CaptureException(err error, _ map[string]string) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *recorder) CapturePanic(v any, tags map[string]string) {
	r.mu.Lock()
	r.panics = append(r.panics, v)
	r.tags = tags
	r.mu.Unlock()
}

func (r *recorder) Flush(time.Duration) { close(r.done) }

func TestGoReportsPanics(t *testing.T) {
	rec := &recorder{done: make(chan struct{})}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })

	Go("roster", func() { panic("boom") })
	select {
	case <-rec.done:
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []any{"boom"}, rec.panics)
	assert.Equal(t, "roster", rec.tags["goroutine"])
}

func TestCaptureExceptionSkipsNil(t *testing.T) {
	rec := &recorder{done: make(chan struct{})}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })
	CaptureException(nil, nil)
	CaptureException(errors.New("x"), nil)
	assert.Len(t, rec.errs, 1)
}

func TestPanicError(t *testing.T) {
	base := errors.New("nil map")
	assert.ErrorIs(t, PanicError(base), base)
	assert.EqualError(t, PanicError(42), "panic: 42")
}
