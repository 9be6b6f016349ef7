package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stasyk411/gbr/core/geocode"
)

func TestDaDataGeocode(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"suggestions":[{"value":"г Москва, ул Тверская, д 1","data":{"geo_lat":"55.757","geo_lon":"37.615"}}]}`))
	}))
	defer srv.Close()

	d := NewDaData(srv.URL, "secret", time.Second)
	loc, err := d.Geocode(context.Background(), " Тверская 1 ")
	require.NoError(t, err)
	assert.Equal(t, "Тверская 1", got["query"])
	assert.Equal(t, float64(1), got["count"])
	assert.Equal(t, "г Москва, ул Тверская, д 1", loc.Address)
	assert.InDelta(t, 55.757, loc.Latitude, 1e-9)
	assert.InDelta(t, 37.615, loc.Longitude, 1e-9)
}

func TestDaDataNotFound(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"empty": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"suggestions":[]}`))
		},
		"no coordinates": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"suggestions":[{"value":"Москва","data":{"geo_lat":null,"geo_lon":null}}]}`))
		},
		"server error": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()
			_, err := NewDaData(srv.URL, "k", time.Second).Geocode(context.Background(), "Ленина 5")
			assert.ErrorIs(t, err, geocode.ErrNotFound)
		})
	}
}

func TestDaDataTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	_, err := NewDaData(url, "k", time.Second).Geocode(context.Background(), "Ленина 5")
	assert.ErrorIs(t, err, geocode.ErrNotFound)
	_, err = NewDaData(url, "k", time.Second).Geocode(context.Background(), "  ")
	assert.ErrorIs(t, err, geocode.ErrNotFound)
}

func TestGoogleGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		assert.Equal(t, "Main St 1", r.URL.Query().Get("address"))
		assert.Equal(t, "ru", r.URL.Query().Get("language"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Main St 1, Springfield","geometry":{"location":{"lat":40.1,"lng":-89.6}}}]}`))
	}))
	defer srv.Close()

	g, err := NewGoogle("AIzaTestKey", srv.URL, "ru", "", time.Second)
	require.NoError(t, err)
	loc, err := g.Geocode(context.Background(), "Main St 1")
	require.NoError(t, err)
	assert.Equal(t, geocode.Location{Address: "Main St 1, Springfield", Latitude: 40.1, Longitude: -89.6}, loc)
}

func TestGoogleZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()
	g, err := NewGoogle("AIzaTestKey", srv.URL, "", "", time.Second)
	require.NoError(t, err)
	_, err = g.Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, geocode.ErrNotFound)
}

func TestNew(t *testing.T) {
	g, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, geocode.Disabled{}, g)

	g, err = New(Config{Provider: "dadata", APIKey: "k", TimeoutSeconds: 2})
	require.NoError(t, err)
	d, ok := g.(*DaData)
	require.True(t, ok)
	assert.Equal(t, DaDataURL, d.url)
	assert.Equal(t, 2*time.Second, d.client.Timeout)

	_, err = New(Config{Provider: "dadata"})
	assert.Error(t, err)
	_, err = New(Config{Provider: "yandex"})
	assert.Error(t, err)

	g, err = New(Config{Provider: "google", APIKey: "AIzaTestKey"})
	require.NoError(t, err)
	assert.IsType(t, &Google{}, g)
}
