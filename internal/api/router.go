// Package api serves a read-only view of the watcher's state.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/api/recovery"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/store"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/vocab"
)

// Deps are the read-side components the handlers need.
type Deps struct {
	Store *store.Store
	Vocab *vocab.Vocabulary
	// Healthy reports overall service health; Components lists per-dependency flags.
	Healthy    func() bool
	Components func() map[string]bool
	// Sightings is the credited sighting count, if attribution is enabled.
	Sightings func() int64
	Now       func() time.Time
}

// NewRouter registers every route.
func NewRouter(d Deps, log zerolog.Logger) *mux.Router {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handler{Deps: d}

	router := mux.NewRouter()
	router.Use(recovery.Middleware(log))

	router.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/api/events", h.history).Methods(http.MethodGet)
	router.HandleFunc("/api/events/active", h.active).Methods(http.MethodGet)
	router.HandleFunc("/api/worlds/{world}/events", h.worldEvents).Methods(http.MethodGet)
	router.HandleFunc("/api/vocabulary", h.vocabulary).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}
