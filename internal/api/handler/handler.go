// Package handler provides HTTP handlers for all API endpoints.
// Handlers delegate to the ingest service; there is no other service layer.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/albapepper/matchsheet/internal/api/respond"
	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/ingest"
)

const (
	// SecretHeader carries the shared secret when one is configured.
	SecretHeader = "X-Secret"

	defaultMaxBodyBytes = 1 << 20
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	ingest       *ingest.Service
	sharedSecret string
	maxBodyBytes int64
	logger       *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(svc *ingest.Service, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Handler{
		ingest:       svc,
		sharedSecret: cfg.SharedSecret,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
}

// Healthz reports process liveness.
// @Summary Liveness check
// @Description Returns OK while the process is serving requests.
// @Tags health
// @Produce plain
// @Success 200 {string} string "OK"
// @Router /healthz [get]
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respond.WriteText(w, http.StatusOK, "OK")
}
