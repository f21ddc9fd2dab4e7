package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/phuttachad/dormcore/internal/domain"
)

// ErrorResponse is the JSON error body for every failing endpoint.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Refs   map[string]string `json:"refs,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError maps the structured error model onto HTTP statuses. Unknown
// errors get a generic 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: "upstream timeout"})
			return
		}
		logger.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch de.Kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindDependency:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, ErrorResponse{
		Error:  de.Message,
		Kind:   string(de.Kind),
		Reason: de.Reason,
		Refs:   de.Refs,
	})
}
