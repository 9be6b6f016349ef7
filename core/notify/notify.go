// Package notify is the outbound port used to alert crews about assigned
// calls.
package notify

import (
	"context"
	"errors"
)

var (
	// ErrAckTimeout is returned when the crew does not acknowledge in time.
	ErrAckTimeout = errors.New("timeout waiting for ack")
	// ErrNoContact is returned when the unit has no contact handle.
	ErrNoContact = errors.New("unit has no contact handle")
)

// Alert is the payload delivered to a crew.
type Alert struct {
	CallID      int64    `json:"call_id"`
	UnitID      int64    `json:"unit_id"`
	UnitName    string   `json:"unit_name"`
	ObjectName  string   `json:"object_name"`
	Address     string   `json:"address"`
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Links       []Link   `json:"links,omitempty"`
}

// Notifier delivers alerts to a crew identified by its contact handle.
type Notifier interface {
	Notify(ctx context.Context, contactHandle string, alert Alert) error
}

// NopNotifier accepts every alert without sending it.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, Alert) error { return nil }
