package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/univoice/internal/session"
)

type deps struct {
	wsHandler http.Handler
	store     *session.Store
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.Handle("/ws/session", d.wsHandler)
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if d.store != nil {
		mux.HandleFunc("GET /api/sessions/{id}/sentences", d.handleSentences)
		mux.HandleFunc("GET /api/sessions/{id}/summaries", d.handleSummaries)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleSentences(w http.ResponseWriter, r *http.Request) {
	entries, err := d.store.GetSentences(r.PathValue("id"))
	if err != nil {
		slog.Error("list session sentences", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (d deps) handleSummaries(w http.ResponseWriter, r *http.Request) {
	entries, err := d.store.GetSummaries(r.PathValue("id"))
	if err != nil {
		slog.Error("list session summaries", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
