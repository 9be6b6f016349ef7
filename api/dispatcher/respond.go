package dispatcher

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/stasyk411/gbr/core/model"
)

var errBodyTooLarge = errors.New("request body too large")

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, code int, msg string, details ...string) {
	writeJSON(w, code, errorResponse{Error: msg, Details: details})
}

// writeError maps engine errors to HTTP statuses. Storage and unexpected
// failures are logged and never leak backend messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeMessage(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	switch model.KindOf(err) {
	case "validation":
		writeMessage(w, http.StatusBadRequest, "invalid request", err.Error())
	case "not_found":
		writeMessage(w, http.StatusNotFound, "not found", err.Error())
	case "conflict":
		writeMessage(w, http.StatusConflict, "conflict", err.Error())
	case "storage":
		s.Log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeMessage(w, http.StatusServiceUnavailable, "try again later")
	default:
		s.Log.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v and validates it.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return model.Validationf("malformed JSON body: %v", err)
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return validationError(verrs)
		}
		return model.Validationf("%v", err)
	}
	return nil
}

func validationError(errs validator.ValidationErrors) error {
	err := errs[0]
	switch err.Tag() {
	case "required":
		return model.Validationf("field '%s' is required", err.Field())
	case "max":
		return model.Validationf("field '%s' must not exceed %s in length", err.Field(), err.Param())
	case "latitude", "longitude":
		return model.Validationf("field '%s' must be a valid %s", err.Field(), err.Tag())
	default:
		return model.Validationf("field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
	}
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validationf("invalid id %q", raw)
	}
	return id, nil
}

func queryID(r *http.Request, key string) (int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.Validationf("invalid %s %q", key, raw)
	}
	return id, nil
}

func requireQuery(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", model.Validationf("query parameter %s is required", key)
	}
	return v, nil
}
