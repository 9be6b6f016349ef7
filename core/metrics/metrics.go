package metrics

import "time"

// TransitionEvent records a unit or call status write.
type TransitionEvent struct {
	// Entity is "unit" or "call".
	Entity string
	ID     int64
	From   string
	To     string
	Time   time.Time
}

// MetricsSink records lifecycle transitions for observability purposes.
type MetricsSink interface {
	RecordTransition(ev TransitionEvent) error
}

// AssignmentEvent captures a committed call assignment.
type AssignmentEvent struct {
	CallID     int64
	UnitID     int64
	Reassigned bool
	Time       time.Time
}

// AssignmentRecorder records assignments.
type AssignmentRecorder interface {
	RecordAssignment(ev AssignmentEvent) error
}

// NotificationEvent captures the outcome of a crew alert.
type NotificationEvent struct {
	CallID    int64
	UnitID    int64
	Delivered bool
	Latency   time.Duration
	Error     string
	Time      time.Time
}

// NotificationRecorder records crew alerts.
type NotificationRecorder interface {
	RecordNotification(ev NotificationEvent) error
}

// RosterSnapshot counts units and calls by status at a point in time.
type RosterSnapshot struct {
	Units map[string]int
	Calls map[string]int
	Time  time.Time
}

// RosterRecorder records periodic roster snapshots.
type RosterRecorder interface {
	RecordRoster(s RosterSnapshot) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(TransitionEvent) error     { return nil }
func (NopSink) RecordAssignment(AssignmentEvent) error     { return nil }
func (NopSink) RecordNotification(NotificationEvent) error { return nil }
func (NopSink) RecordRoster(RosterSnapshot) error          { return nil }
