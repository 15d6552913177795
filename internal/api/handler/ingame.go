package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/albapepper/matchsheet/internal/api/respond"
	"github.com/albapepper/matchsheet/internal/config"
	"github.com/albapepper/matchsheet/internal/payload"
	"github.com/albapepper/matchsheet/internal/sink"
)

const shapeHint = `expected JSON: {'rows': [[...],[...]]}, just [[...],[...]], or {'result', 'time_played', 'players': [...]}`

// IngameResponse is returned when the rows were appended.
type IngameResponse struct {
	OK      bool         `json:"ok"`
	Updates sink.Updates `json:"updates"`
}

// ShapeErrorResponse explains why a body was not accepted.
type ShapeErrorResponse struct {
	OK          bool   `json:"ok"`
	Error       string `json:"error"`
	ContentType string `json:"content_type"`
	BodyPreview string `json:"body_preview"`
	Kind        string `json:"kind"`
}

// SinkErrorResponse mirrors an error reported by the sink.
type SinkErrorResponse struct {
	OK           bool            `json:"ok"`
	GoogleStatus int             `json:"google_status"`
	GoogleError  json.RawMessage `json:"google_error"`
}

// Ingame appends one match payload to the sheet.
// @Summary Append match rows
// @Description Accepts [[...]], {"rows": [[...]]}, a match result with players, any of those JSON-encoded twice, or form field rows=<json>. Rows are appended below the existing data of the configured tab.
// @Tags ingest
// @Accept json
// @Accept x-www-form-urlencoded
// @Produce json
// @Param X-Secret header string false "Shared secret, required when configured"
// @Success 200 {object} IngameResponse
// @Failure 400 {object} ShapeErrorResponse
// @Failure 401 {object} respond.ErrorResponse
// @Failure 413 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /ingame [post]
func (h *Handler) Ingame(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		respond.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	contentType := r.Header.Get("Content-Type")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.serverError(w, r, "read body", err)
		return
	}

	in := payload.NewInput(string(body), contentType)
	updates, err := h.ingest.Ingest(r.Context(), in)
	if err != nil {
		h.ingestError(w, r, in, err)
		return
	}

	respond.WriteJSONObject(w, http.StatusOK, IngameResponse{OK: true, Updates: updates})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.sharedSecret == "" {
		return true
	}
	got := r.Header.Get(SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.sharedSecret)) == 1
}

func (h *Handler) ingestError(w http.ResponseWriter, r *http.Request, in payload.Input, err error) {
	var shapeErr *payload.ShapeError
	if errors.As(err, &shapeErr) {
		h.logger.Info("Payload shape unrecognized",
			"content_type", shapeErr.ContentType,
			"kind", in.ParsedKind(),
			"request_id", middleware.GetReqID(r.Context()))
		respond.WriteJSONObject(w, http.StatusBadRequest, ShapeErrorResponse{
			OK:          false,
			Error:       shapeHint,
			ContentType: shapeErr.ContentType,
			BodyPreview: shapeErr.Preview,
			Kind:        in.ParsedKind(),
		})
		return
	}

	var remote *sink.RemoteError
	if errors.As(err, &remote) {
		h.logger.Warn("Sink rejected append",
			"status", remote.Status,
			"error", err,
			"request_id", middleware.GetReqID(r.Context()))
		respond.WriteJSONObject(w, remote.HTTPStatus(), SinkErrorResponse{
			OK:           false,
			GoogleStatus: remote.HTTPStatus(),
			GoogleError:  remote.Detail,
		})
		return
	}

	if errors.Is(err, config.ErrMissing) || errors.Is(err, config.ErrMalformed) {
		h.serverError(w, r, "sink configuration", err)
		return
	}
	h.serverError(w, r, "append", err)
}

// serverError logs the full error and answers with a generic 500.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, stage string, err error) {
	h.logger.Error("Ingame request failed",
		"stage", stage,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()))
	respond.WriteError(w, http.StatusInternalServerError, "server exception")
}
