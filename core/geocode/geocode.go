// Package geocode is the port that turns free-text addresses into
// coordinates.
package geocode

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the address cannot be resolved. Adapters also
// return it for transport failures so callers never see provider errors.
var ErrNotFound = errors.New("address not found")

// Location is a resolved address.
type Location struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves addresses.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}

// Func adapts a function to Geocoder.
type Func func(ctx context.Context, address string) (Location, error)

func (f Func) Geocode(ctx context.Context, address string) (Location, error) { return f(ctx, address) }

// Disabled never resolves anything.
type Disabled struct{}

func (Disabled) Geocode(context.Context, string) (Location, error) { return Location{}, ErrNotFound }
