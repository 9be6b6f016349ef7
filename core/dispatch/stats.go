package dispatch

import (
	"context"
	"time"

	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

// Stats counts units and calls by status.
type Stats struct {
	Units map[string]int `json:"units"`
	Calls map[string]int `json:"calls"`
	At    time.Time      `json:"at"`
}

// Snapshot counts every unit and call in r.
func Snapshot(ctx context.Context, r store.Repository) (Stats, error) {
	units, err := r.ListUnits(ctx, store.UnitFilter{})
	if err != nil {
		return Stats{}, err
	}
	calls, err := r.ListCalls(ctx, store.CallFilter{})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Units: map[string]int{}, Calls: map[string]int{}, At: time.Now().UTC()}
	for _, s := range model.UnitStatuses {
		st.Units[s.String()] = 0
	}
	for _, s := range model.CallStatuses {
		st.Calls[s.String()] = 0
	}
	for _, u := range units {
		st.Units[u.Status.String()]++
	}
	for _, c := range calls {
		st.Calls[c.Status.String()]++
	}
	return st, nil
}
