// Package journal keeps a queryable history of unit and call lifecycle
// events.
package journal

import (
	"context"
	"time"
)

// Record captures one lifecycle event.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	CallID    int64     `json:"call_id,omitempty"`
	UnitID    int64     `json:"unit_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match
// everything.
type Query struct {
	Start  time.Time
	End    time.Time
	CallID int64
	UnitID int64
	Kind   string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.CallID != 0 && r.CallID != q.CallID {
		return false
	}
	if q.UnitID != 0 && r.UnitID != q.UnitID {
		return false
	}
	return q.Kind == "" || r.Kind == q.Kind
}

func (q Query) limit(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
