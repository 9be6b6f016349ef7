package model

import (
	"fmt"
	"strings"
)

// UnitStatus is the availability of a response crew.
type UnitStatus int

const (
	UnitFree UnitStatus = iota
	UnitBusy
	UnitArrived
)

// UnitStatuses lists every unit status in lifecycle order.
var UnitStatuses = []UnitStatus{UnitFree, UnitBusy, UnitArrived}

// String returns the textual form used in storage and transports.
func (s UnitStatus) String() string {
	switch s {
	case UnitFree:
		return "free"
	case UnitBusy:
		return "busy"
	case UnitArrived:
		return "arrived"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the declared statuses.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitFree, UnitBusy, UnitArrived:
		return true
	default:
		return false
	}
}

// ParseUnitStatus converts a textual status. Matching ignores case and
// surrounding whitespace.
func ParseUnitStatus(s string) (UnitStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return UnitFree, nil
	case "busy":
		return UnitBusy, nil
	case "arrived":
		return UnitArrived, nil
	default:
		return 0, Validationf("unknown unit status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s UnitStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid unit status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *UnitStatus) UnmarshalText(b []byte) error {
	v, err := ParseUnitStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CallStatus is the lifecycle stage of a call.
type CallStatus int

const (
	CallPending CallStatus = iota
	CallAssigned
	CallInProgress
	CallCompleted
)

// CallStatuses lists every call status in lifecycle order.
var CallStatuses = []CallStatus{CallPending, CallAssigned, CallInProgress, CallCompleted}

// ActiveCallStatuses are the statuses in which a call occupies its unit.
var ActiveCallStatuses = []CallStatus{CallAssigned, CallInProgress}

func (s CallStatus) String() string {
	switch s {
	case CallPending:
		return "pending"
	case CallAssigned:
		return "assigned"
	case CallInProgress:
		return "in_progress"
	case CallCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the declared statuses.
func (s CallStatus) Valid() bool {
	switch s {
	case CallPending, CallAssigned, CallInProgress, CallCompleted:
		return true
	default:
		return false
	}
}

// Active reports whether a call in this status holds its unit.
func (s CallStatus) Active() bool {
	return s == CallAssigned || s == CallInProgress
}

// ParseCallStatus converts a textual status.
func ParseCallStatus(s string) (CallStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return CallPending, nil
	case "assigned":
		return CallAssigned, nil
	case "in_progress", "in-progress":
		return CallInProgress, nil
	case "completed":
		return CallCompleted, nil
	default:
		return 0, Validationf("unknown call status %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s CallStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid call status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *CallStatus) UnmarshalText(b []byte) error {
	v, err := ParseCallStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
