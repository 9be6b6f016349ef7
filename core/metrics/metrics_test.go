package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/events"
	"github.com/stasyk411/gbr/core/factory"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/infra/logger"
)

type recordSink struct {
	transitions   []TransitionEvent
	assignments   []AssignmentEvent
	notifications []NotificationEvent
	rosters       int
	err           error
}

func (r *recordSink) RecordTransition(ev TransitionEvent) error {
	r.transitions = append(r.transitions, ev)
	return r.err
}

func (r *recordSink) RecordAssignment(ev AssignmentEvent) error {
	r.assignments = append(r.assignments, ev)
	return r.err
}

func (r *recordSink) RecordNotification(ev NotificationEvent) error {
	r.notifications = append(r.notifications, ev)
	return r.err
}

func (r *recordSink) RecordRoster(RosterSnapshot) error {
	r.rosters++
	return r.err
}

// transitionsOnly implements none of the optional recorders.
type transitionsOnly struct{ n int }

func (t *transitionsOnly) RecordTransition(TransitionEvent) error {
	t.n++
	return nil
}

func TestRecordTranslatesEvents(t *testing.T) {
	at := time.Now()
	s := &recordSink{}
	require.NoError(t, Record(s, events.UnitStatusChanged{UnitID: 1, From: model.UnitFree, To: model.UnitBusy, At: at}))
	require.NoError(t, Record(s, events.CallStatusChanged{CallID: 2, From: model.CallPending, To: model.CallAssigned, At: at}))
	require.NoError(t, Record(s, events.CallAssigned{CallID: 2, UnitID: 1, PreviousUnitID: 5, At: at}))
	require.NoError(t, Record(s, events.CrewNotified{CallID: 2, UnitID: 1, Err: errors.New("timeout"), At: at}))
	require.NoError(t, Record(s, events.UnitContactBound{UnitID: 1, At: at}))

	require.Len(t, s.transitions, 2)
	assert.Equal(t, TransitionEvent{Entity: "unit", ID: 1, From: "free", To: "busy", Time: at}, s.transitions[0])
	assert.Equal(t, "call", s.transitions[1].Entity)
	require.Len(t, s.assignments, 1)
	assert.True(t, s.assignments[0].Reassigned)
	require.Len(t, s.notifications, 1)
	assert.False(t, s.notifications[0].Delivered)
	assert.Equal(t, "timeout", s.notifications[0].Error)
}

func TestRecordSkipsMissingRecorders(t *testing.T) {
	s := &transitionsOnly{}
	assert.NoError(t, Record(s, events.CallAssigned{CallID: 1, UnitID: 1}))
	assert.NoError(t, Record(s, events.CallStatusChanged{CallID: 1}))
	assert.Equal(t, 1, s.n)
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{err: errors.New("down")}
	s2 := &recordSink{}
	only := &transitionsOnly{}
	m := NewMultiSink(s1, s2, only)

	err := m.RecordTransition(TransitionEvent{Entity: "call"})
	assert.EqualError(t, err, "down")
	assert.Len(t, s2.transitions, 1)
	assert.Equal(t, 1, only.n)

	s1.err = nil
	require.NoError(t, m.RecordAssignment(AssignmentEvent{CallID: 1}))
	require.NoError(t, m.RecordNotification(NotificationEvent{CallID: 1}))
	require.NoError(t, m.RecordRoster(RosterSnapshot{}))
	assert.Equal(t, 1, s1.rosters)
	assert.Equal(t, 1, s2.rosters)
	assert.Len(t, s2.notifications, 1)
}

func TestCollect(t *testing.T) {
	s := &recordSink{}
	ch := make(chan events.Event, 2)
	ch <- events.UnitStatusChanged{UnitID: 1, To: model.UnitArrived}
	ch <- events.CallAssigned{CallID: 3, UnitID: 1}
	close(ch)
	Collect(context.Background(), s, ch, logger.NopLogger{})
	assert.Len(t, s.transitions, 1)
	assert.Len(t, s.assignments, 1)
}

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	require.NoError(t, RegisterMetricsSink("record-test", func(map[string]any) (MetricsSink, error) {
		return &recordSink{}, nil
	}))
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "record-test"}})
	require.NoError(t, err)
	assert.IsType(t, &recordSink{}, s)

	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "record-test"}, {Type: "record-test"}})
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)

	_, err = NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
}
