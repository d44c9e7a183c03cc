package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

// Error codes carried in the response envelope.
const (
	codeInvalidRequest  = "invalid_request"
	codeInvalidAmount   = "invalid_amount"
	codeInvalidTemporal = "invalid_temporal_input"
	codeNoBudget        = "no_budget"
	codeBudgetExceeded  = "budget_exceeded"
	codeNotFound        = "not_found"
	codeStorageFailure  = "storage_failure"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", applog.FieldError, err)
	}
}

func sendSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func sendError(w http.ResponseWriter, status int, code, message string, data any) {
	writeJSON(w, status, envelope{Success: false, Message: message, Code: code, Data: data})
}

// sendServiceError maps domain errors onto status codes and envelope
// codes. Anything unrecognized is a storage failure and logs the cause.
func sendServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var exceeded *core.BudgetExceededError

	switch {
	case errors.As(err, &exceeded):
		sendError(w, http.StatusBadRequest, codeBudgetExceeded, exceeded.Error(), map[string]any{
			"budget":    exceeded.Budget,
			"spent":     exceeded.Spent,
			"remaining": exceeded.Remaining,
		})
	case errors.Is(err, core.ErrNoBudgetSet):
		sendError(w, http.StatusBadRequest, codeNoBudget, core.ErrNoBudgetSet.Error(), nil)
	case errors.Is(err, core.ErrInvalidAmount):
		sendError(w, http.StatusBadRequest, codeInvalidAmount, core.ErrInvalidAmount.Error(), nil)
	case errors.Is(err, core.ErrInvalidTemporalInput), errors.Is(err, core.ErrInvalidMonth):
		sendError(w, http.StatusBadRequest, codeInvalidTemporal, err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		sendError(w, http.StatusNotFound, codeNotFound, "resource not found", nil)
	case errors.Is(err, core.ErrEmptyUser):
		sendError(w, http.StatusBadRequest, codeInvalidRequest, core.ErrEmptyUser.Error(), nil)
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		sendError(w, http.StatusInternalServerError, codeStorageFailure, "internal error", nil)
	}
}
