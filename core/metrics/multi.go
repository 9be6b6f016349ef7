package metrics

import "errors"

// MultiSink fans events out to several sinks. Every sink receives the event
// even when an earlier one fails; the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordTransition(ev TransitionEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordTransition(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(AssignmentRecorder); ok {
			errs = append(errs, rec.RecordAssignment(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordNotification(ev NotificationEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(NotificationRecorder); ok {
			errs = append(errs, rec.RecordNotification(ev))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordRoster(snap RosterSnapshot) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(RosterRecorder); ok {
			errs = append(errs, rec.RecordRoster(snap))
		}
	}
	return errors.Join(errs...)
}
