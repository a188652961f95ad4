package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"atmbank/internal/services"
	"atmbank/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps the core error taxonomy onto HTTP status
// categories. Retryable concurrency outcomes become 409 so clients
// know resubmitting is safe.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrSameAccountTransfer),
		errors.Is(err, services.ErrInsufficientFunds):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, services.ErrAccountDisabled):
		respondError(w, http.StatusForbidden, "account is disabled")
	case errors.Is(err, services.ErrConcurrencyTimeout), errors.Is(err, services.ErrBalanceConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "operation failed")
	}
}
