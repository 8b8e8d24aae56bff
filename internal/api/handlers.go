package api

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/api/respond"
	"github.com/LukeHankey/DSF-Event-Tracker-sub000/internal/model"
)

type handler struct {
	Deps
}

type activeView struct {
	Record           model.EventRecord `json:"record"`
	RemainingSeconds int64             `json:"remainingSeconds"`
}

type kindView struct {
	Name            string   `json:"name"`
	Abbreviation    string   `json:"abbreviation,omitempty"`
	DurationSeconds int64    `json:"durationSeconds"`
	Phrases         []string `json:"phrases"`
	Departures      []string `json:"departures,omitempty"`
	Debug           bool     `json:"debug,omitempty"`
}

// health always answers 200; the body carries the status.
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	status := "unhealthy"
	if h.Healthy == nil || h.Healthy() {
		status = "healthy"
	}
	body := map[string]any{
		"status":    status,
		"timestamp": h.Now().Format(time.RFC3339),
		"records":   h.Store.Len(),
	}
	if h.Components != nil {
		body["components"] = h.Components()
	}
	if h.Sightings != nil {
		body["sightings"] = h.Sightings()
	}
	respond.WriteJSON(w, http.StatusOK, body)
}

// history lists stored records oldest first; ?limit=N keeps the newest N.
func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	recs := slices.Collect(h.Store.History())
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respond.WriteBadRequest(w, "limit must be a non-negative integer")
			return
		}
		if n < len(recs) {
			recs = recs[len(recs)-n:]
		}
	}
	respond.WriteJSON(w, http.StatusOK, nonNil(recs))
}

func (h *handler) active(w http.ResponseWriter, _ *http.Request) {
	now := h.Now()
	out := []activeView{}
	for _, rec := range h.Store.Active(now) {
		out = append(out, activeView{Record: rec, RemainingSeconds: int64(rec.Remaining(now) / time.Second)})
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) worldEvents(w http.ResponseWriter, r *http.Request) {
	world := mux.Vars(r)["world"]
	recs := slices.Collect(h.Store.AllForWorld(world))
	respond.WriteJSON(w, http.StatusOK, nonNil(recs))
}

func (h *handler) vocabulary(w http.ResponseWriter, _ *http.Request) {
	var out []kindView
	for _, k := range h.Vocab.All() {
		out = append(out, kindView{
			Name:            string(k.Name),
			Abbreviation:    k.Abbreviation,
			DurationSeconds: int64(k.Duration / time.Second),
			Phrases:         k.Phrases,
			Departures:      k.Departures,
			Debug:           k.Debug,
		})
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

func nonNil(recs []model.EventRecord) []model.EventRecord {
	if recs == nil {
		return []model.EventRecord{}
	}
	return recs
}
