package geocode

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/stasyk411/gbr/core/geocode"
)

// Google resolves addresses with the Google Maps Geocoding API.
type Google struct {
	client   *maps.Client
	language string
	region   string
}

// NewGoogle returns a Google geocoder. baseURL is only set in tests.
func NewGoogle(apiKey, baseURL, language, region string, timeout time.Duration) (*Google, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	c, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("google maps client: %w", err)
	}
	return &Google{client: c, language: language, region: region}, nil
}

// Geocode returns the first result for address. Every failure is reported
// as geocode.ErrNotFound.
func (g *Google) Geocode(ctx context.Context, address string) (geocode.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geocode.Location{}, geocode.ErrNotFound
	}
	res, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  address,
		Language: g.language,
		Region:   g.region,
	})
	if err != nil {
		return geocode.Location{}, fmt.Errorf("%w: %v", geocode.ErrNotFound, err)
	}
	if len(res) == 0 {
		return geocode.Location{}, geocode.ErrNotFound
	}
	r := res[0]
	return geocode.Location{
		Address:   r.FormattedAddress,
		Latitude:  r.Geometry.Location.Lat,
		Longitude: r.Geometry.Location.Lng,
	}, nil
}
