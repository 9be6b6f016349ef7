// Package dispatcher exposes the dispatch engine to the operator over HTTP.
//
// Every /api route requires the configured dispatcher identity in the
// X-User-ID header and, when a token is configured, a matching bearer token.
package dispatcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/stasyk411/gbr/core/dispatch"
	"github.com/stasyk411/gbr/core/geocode"
	"github.com/stasyk411/gbr/core/journal"
	"github.com/stasyk411/gbr/core/logger"
	"github.com/stasyk411/gbr/core/store"
)

// Identity is the operator allowed to call the API.
type Identity struct {
	UserID string
	Token  string
}

// Deps are the engine components served by the API. Geocoder and Journal
// may be nil.
type Deps struct {
	Units       *dispatch.UnitManager
	Calls       *dispatch.CallManager
	Coordinator *dispatch.Coordinator
	Store       store.Repository
	Geocoder    geocode.Geocoder
	Journal     journal.Store
	Log         logger.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	Deps
	id       Identity
	validate *validator.Validate
}

// NewServer returns a Server for deps.
func NewServer(deps Deps, id Identity) *Server {
	if deps.Geocoder == nil {
		deps.Geocoder = geocode.Disabled{}
	}
	return &Server{Deps: deps, id: id, validate: validator.New()}
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate, limitBody)
	api.HandleFunc("/units", s.listUnits).Methods(http.MethodGet)
	api.HandleFunc("/units", s.createUnit).Methods(http.MethodPost)
	api.HandleFunc("/units/free", s.freeUnits).Methods(http.MethodGet)
	api.HandleFunc("/units/{id:[0-9]+}", s.getUnit).Methods(http.MethodGet)
	api.HandleFunc("/units/{id:[0-9]+}/status", s.setUnitStatus).Methods(http.MethodPut)
	api.HandleFunc("/units/{id:[0-9]+}/contact", s.bindContact).Methods(http.MethodPut)

	api.HandleFunc("/calls", s.listCalls).Methods(http.MethodGet)
	api.HandleFunc("/calls", s.createCall).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id:[0-9]+}", s.getCall).Methods(http.MethodGet)
	api.HandleFunc("/calls/{id:[0-9]+}/status", s.setCallStatus).Methods(http.MethodPut)
	api.HandleFunc("/calls/{id:[0-9]+}/assign", s.assign).Methods(http.MethodPost)
	api.HandleFunc("/calls/{id:[0-9]+}/notify", s.renotify).Methods(http.MethodPost)

	api.HandleFunc("/geocode", s.lookup).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	if s.Journal != nil {
		api.HandleFunc("/journal", s.journal).Methods(http.MethodGet)
	}
	return r
}

// Handler wraps the router with CORS handling for origins.
func (s *Server) Handler(origins []string) http.Handler {
	co := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-User-ID"},
	})
	return co.Handler(s.Router())
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.id.UserID == "" || r.Header.Get("X-User-ID") != s.id.UserID {
			writeMessage(w, http.StatusForbidden, "access denied")
			return
		}
		if s.id.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.id.Token {
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListenAndServe serves h on addr until ctx is canceled.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, log logger.Logger) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("api server shutdown: %v", err)
		}
		cancel()
	}()
	log.Infof("serving dispatcher API on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
