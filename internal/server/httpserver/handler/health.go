package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/infra/buildinfo"
	"github.com/yndnr/mirrorsync/internal/storage"
)

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /readyz. The backend must accept a probe write.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	c := storage.Probe(r.Context(), storage.NameOf(h.backend), h.backend)
	if !c.Usable {
		h.logger.Warn("readiness probe failed", "backend", c.Name, "error", c.Err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"backend": c.Name,
			"error":   c.Err.Error(),
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"backend": c.Name,
		"latency": c.Latency.String(),
	})
}

// handleVersion handles GET /version.
func (h *Handler) handleVersion(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, buildinfo.Get())
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Backend string         `json:"backend"`
	Keys    int            `json:"keys"`
	Uptime  string         `json:"uptime"`
	Build   buildinfo.Info `json:"build"`
}

// handleStatus handles GET /status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := h.backend.Keys(r.Context())
	if err != nil {
		h.logger.Error("status: list keys", "error", err)
		code := domain.GetErrorCode(err)
		if code == "" {
			code = domain.ErrBackendUnavailable.Code
		}
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"code":    code,
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, StatusResponse{
		Backend: storage.NameOf(h.backend),
		Keys:    len(keys),
		Uptime:  h.now().Sub(h.started).Round(time.Second).String(),
		Build:   buildinfo.Get(),
	})
}
