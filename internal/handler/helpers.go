package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/boddenberg/finance-tracker-go/internal/action"
	"github.com/boddenberg/finance-tracker-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeEnvelope(w http.ResponseWriter, env action.Envelope) {
	status := env.Status
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, env)
}

// decodeJSON decodes the request body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

// parseLimit reads ?limit=; zero means no limit.
func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			return n
		}
	}
	return 0
}

// handleServiceError maps domain errors on the read path to HTTP responses.
// Only validation messages are shown verbatim; every other failure gets the
// status text so store errors never reach the client.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := action.StatusFor(err)

	var validation *domain.ErrValidation
	msg := http.StatusText(status)
	if errors.As(err, &validation) {
		msg = validation.Error()
	}

	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	case status == http.StatusUnauthorized:
		logger.Warn("unauthorized", zap.String("error", err.Error()))
	default:
		logger.Debug("request rejected", zap.Int("status", status), zap.String("error", err.Error()))
	}
	writeError(w, status, msg)
}
