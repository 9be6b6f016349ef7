package model

import "time"

// Unit is a response crew that can be dispatched to calls.
type Unit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// ContactHandle identifies the crew on the messaging transport. Empty
	// means the unit cannot be notified.
	ContactHandle string     `json:"contact_handle,omitempty"`
	Status        UnitStatus `json:"status"`
	Phone         string     `json:"phone,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasContact reports whether a contact handle is bound.
func (u Unit) HasContact() bool { return u.ContactHandle != "" }
