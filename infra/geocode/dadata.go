package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stasyk411/gbr/core/geocode"
)

// DaDataURL is the address suggestion endpoint.
const DaDataURL = "https://suggestions.dadata.ru/suggestions/api/4_1/rs/suggest/address"

// DaData resolves addresses with the DaData suggestion API. Only the first
// suggestion is used and it must carry coordinates.
type DaData struct {
	url    string
	token  string
	client *http.Client
}

// NewDaData returns a DaData geocoder. An empty url selects DaDataURL.
func NewDaData(url, token string, timeout time.Duration) *DaData {
	if url == "" {
		url = DaDataURL
	}
	return &DaData{url: url, token: token, client: &http.Client{Timeout: timeout}}
}

type dadataResponse struct {
	Suggestions []struct {
		Value string `json:"value"`
		Data  struct {
			GeoLat *string `json:"geo_lat"`
			GeoLon *string `json:"geo_lon"`
		} `json:"data"`
	} `json:"suggestions"`
}

// Geocode returns the first suggestion for address. Every failure, including
// transport errors, is reported as geocode.ErrNotFound.
func (d *DaData) Geocode(ctx context.Context, address string) (geocode.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geocode.Location{}, geocode.ErrNotFound
	}
	body, err := json.Marshal(map[string]any{"query": address, "count": 1})
	if err != nil {
		return geocode.Location{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return geocode.Location{}, fmt.Errorf("%w: %v", geocode.ErrNotFound, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Token "+d.token)
	resp, err := d.client.Do(req)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("%w: %v", geocode.ErrNotFound, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return geocode.Location{}, fmt.Errorf("%w: dadata status %d", geocode.ErrNotFound, resp.StatusCode)
	}
	var out dadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return geocode.Location{}, fmt.Errorf("%w: decode: %v", geocode.ErrNotFound, err)
	}
	if len(out.Suggestions) == 0 {
		return geocode.Location{}, geocode.ErrNotFound
	}
	s := out.Suggestions[0]
	if s.Data.GeoLat == nil || s.Data.GeoLon == nil {
		return geocode.Location{}, fmt.Errorf("%w: %q has no coordinates", geocode.ErrNotFound, s.Value)
	}
	lat, err1 := strconv.ParseFloat(*s.Data.GeoLat, 64)
	lon, err2 := strconv.ParseFloat(*s.Data.GeoLon, 64)
	if err1 != nil || err2 != nil {
		return geocode.Location{}, fmt.Errorf("%w: bad coordinates for %q", geocode.ErrNotFound, s.Value)
	}
	return geocode.Location{Address: s.Value, Latitude: lat, Longitude: lon}, nil
}
