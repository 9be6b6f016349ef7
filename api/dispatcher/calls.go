package dispatcher

import (
	"errors"
	"net/http"

	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/model"
)

type createCallRequest struct {
	ObjectName  string   `json:"object_name" validate:"required,max=256"`
	Address     string   `json:"address" validate:"required,max=512"`
	Description string   `json:"description" validate:"max=2048"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

type callStatusRequest struct {
	Status string `json:"status" validate:"required"`
	UnitID *int64 `json:"unit_id"`
}

type assignRequest struct {
	UnitID int64 `json:"unit_id" validate:"required,gt=0"`
	// Notify defaults to true.
	Notify *bool `json:"notify"`
}

type assignResponse struct {
	Call        model.Call `json:"call"`
	Notified    bool       `json:"notified"`
	NotifyError string     `json:"notify_error,omitempty"`
}

// GET /api/calls?status=&unit_id=
//
// status may be repeated; "active" selects assigned and in-progress calls.
func (s *Server) listCalls(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unitID, err := queryID(r, "unit_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var statuses []model.CallStatus
	for _, raw := range r.URL.Query()["status"] {
		if raw == "active" {
			statuses = append(statuses, model.CallAssigned, model.CallInProgress)
			continue
		}
		st, err := model.ParseCallStatus(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		statuses = append(statuses, st)
	}

	var calls []model.Call
	switch {
	case unitID != 0:
		calls, err = s.Calls.GetCallsByUnit(ctx, unitID)
		if err == nil && len(statuses) > 0 {
			calls = filterStatus(calls, statuses)
		}
	case len(statuses) > 0:
		calls, err = s.Calls.GetCallsByStatus(ctx, statuses...)
	default:
		calls, err = s.Calls.GetAllCalls(ctx)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(calls))
}

func filterStatus(calls []model.Call, statuses []model.CallStatus) []model.Call {
	out := calls[:0]
	for _, c := range calls {
		for _, st := range statuses {
			if c.Status == st {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// POST /api/calls
func (s *Server) createCall(w http.ResponseWriter, r *http.Request) {
	var req createCallRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Calls.CreateCall(r.Context(), dispatch.CallInput{
		ObjectName:  req.ObjectName,
		Address:     req.Address,
		Description: req.Description,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GET /api/calls/{id}
func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Calls.GetCall(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// PUT /api/calls/{id}/status
//
// Moving a pending call to assigned with a unit_id goes through the
// coordinator so the unit is bound and marked busy.
func (s *Server) setCallStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req callStatusRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := model.ParseCallStatus(req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var c model.Call
	if st == model.CallAssigned && req.UnitID != nil {
		c, err = s.Coordinator.Assign(r.Context(), id, *req.UnitID)
	} else {
		c, err = s.Calls.SetCallStatus(r.Context(), id, st)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// POST /api/calls/{id}/assign
//
// A committed assignment whose alert could not be delivered still answers
// 200 with notified=false.
func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Notify != nil && !*req.Notify {
		c, err := s.Coordinator.Assign(r.Context(), id, req.UnitID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, assignResponse{Call: c})
		return
	}
	c, err := s.Coordinator.AssignAndNotify(r.Context(), id, req.UnitID)
	if err != nil && !errors.Is(err, dispatch.ErrNotification) {
		s.writeError(w, r, err)
		return
	}
	resp := assignResponse{Call: c, Notified: err == nil && s.Coordinator.CanNotify()}
	if err != nil {
		resp.NotifyError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/calls/{id}/notify resends the alert for an assigned call.
func (s *Server) renotify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.Calls.GetCall(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if c.UnitID == nil {
		s.writeError(w, r, model.Conflictf("call %d has no unit", id))
		return
	}
	resp := assignResponse{Call: c, Notified: true}
	if err := s.Coordinator.Notify(r.Context(), c); err != nil {
		resp.Notified = false
		resp.NotifyError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
