package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/mirrorsync/internal/storage"
)

// Handler serves the operational endpoints for one backend.
type Handler struct {
	backend storage.Backend
	logger  *slog.Logger
	started time.Time
	now     func() time.Time
	mux     *http.ServeMux
}

// New creates a Handler. A nil logger falls back to slog.Default.
func New(backend storage.Backend, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		backend: backend,
		logger:  logger,
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	h.started = h.now()

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("GET /readyz", h.handleReady)
	h.mux.HandleFunc("GET /version", h.handleVersion)
	h.mux.HandleFunc("GET /status", h.handleStatus)
}

// writeJSON writes data as a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
