package model

import "time"

// Call is an incoming alarm or address event to be served by a unit.
type Call struct {
	ID          int64      `json:"id"`
	ObjectName  string     `json:"object_name"`
	Address     string     `json:"address"`
	Description string     `json:"description,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Status      CallStatus `json:"status"`
	UnitID      *int64     `json:"unit_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HasCoordinates reports whether both coordinates are known.
func (c Call) HasCoordinates() bool { return c.Latitude != nil && c.Longitude != nil }

// BoundTo reports whether the call references unit id.
func (c Call) BoundTo(id int64) bool { return c.UnitID != nil && *c.UnitID == id }

// Clone returns a deep copy so callers can mutate pointer fields freely.
func (c Call) Clone() Call {
	out := c
	out.Latitude = clonePtr(c.Latitude)
	out.Longitude = clonePtr(c.Longitude)
	out.UnitID = clonePtr(c.UnitID)
	out.AssignedAt = clonePtr(c.AssignedAt)
	out.CompletedAt = clonePtr(c.CompletedAt)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
