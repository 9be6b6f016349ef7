package dispatcher

import (
	"net/http"

	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/model"
	"github.com/stasyk411/gbr/core/store"
)

type createUnitRequest struct {
	Name          string `json:"name" validate:"required,max=128"`
	ContactHandle string `json:"contact_handle" validate:"max=64"`
	Phone         string `json:"phone" validate:"max=32"`
	Notes         string `json:"notes" validate:"max=1024"`
}

type unitStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type bindContactRequest struct {
	ContactHandle string `json:"contact_handle" validate:"required,max=64"`
}

// GET /api/units?status=&contact=
func (s *Server) listUnits(w http.ResponseWriter, r *http.Request) {
	var f store.UnitFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := model.ParseUnitStatus(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.Status = &st
	}
	f.ContactHandle = r.URL.Query().Get("contact")
	units, err := s.Units.ListUnits(r.Context(), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(units))
}

// GET /api/units/free
func (s *Server) freeUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.Units.GetFreeUnits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(units))
}

// POST /api/units
func (s *Server) createUnit(w http.ResponseWriter, r *http.Request) {
	var req createUnitRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.Units.CreateUnit(r.Context(), dispatch.UnitInput{
		Name:          req.Name,
		ContactHandle: req.ContactHandle,
		Phone:         req.Phone,
		Notes:         req.Notes,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GET /api/units/{id}
func (s *Server) getUnit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.Units.GetUnit(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// PUT /api/units/{id}/status
func (s *Server) setUnitStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req unitStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := model.ParseUnitStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.Units.SetUnitStatus(r.Context(), id, st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// PUT /api/units/{id}/contact
func (s *Server) bindContact(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req bindContactRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.Units.BindContactHandle(r.Context(), id, req.ContactHandle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
