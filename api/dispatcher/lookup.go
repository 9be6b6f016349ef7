package dispatcher

import (
	"errors"
	"net/http"

	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/geocode"
	"github.com/stasyk411/gbr/core/notify"
)

type lookupResponse struct {
	Address   string        `json:"address"`
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Links     []notify.Link `json:"links"`
}

// GET /api/geocode?address=
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	address, err := requireQuery(r, "address")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	loc, err := s.Geocoder.Geocode(r.Context(), address)
	if errors.Is(err, geocode.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, "address not found")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lookupResponse{
		Address:   loc.Address,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Links:     notify.NavigationLinks(&loc.Latitude, &loc.Longitude, loc.Address),
	})
}

// GET /api/stats
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := dispatch.Snapshot(r.Context(), s.Store)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
