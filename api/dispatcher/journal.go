package dispatcher

import (
	"net/http"
	"strconv"
	"time"

	"github.com/stasyk411/gbr/core/journal"
	"github.com/stasyk411/gbr/core/model"
)

// GET /api/journal?start=&end=&call_id=&unit_id=&kind=&limit=
//
// start and end are RFC3339 timestamps.
func (s *Server) journal(w http.ResponseWriter, r *http.Request) {
	q, err := journalQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records, err := s.Journal.Query(r.Context(), q)
	if err != nil {
		s.writeError(w, r, model.StorageError("query journal", err))
		return
	}
	writeJSON(w, http.StatusOK, nonNil(records))
}

func journalQuery(r *http.Request) (journal.Query, error) {
	v := r.URL.Query()
	q := journal.Query{Kind: v.Get("kind")}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if raw := v.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return q, model.Validationf("invalid %s %q", key, raw)
			}
			*dst = t
		}
	}
	var err error
	if q.CallID, err = queryID(r, "call_id"); err != nil {
		return q, err
	}
	if q.UnitID, err = queryID(r, "unit_id"); err != nil {
		return q, err
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, model.Validationf("invalid limit %q", raw)
		}
		q.Limit = n
	}
	return q, nil
}
