// Package http exposes the cart engine and the catalog over REST, renders the
// HTML views and mounts the websocket endpoint.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/fjod/cartsync/internal/domain"
	"github.com/fjod/cartsync/pkg/logger"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type envelope struct {
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

func respondSuccess(w http.ResponseWriter, status int, payload any) {
	respondJSON(w, status, envelope{Status: statusSuccess, Payload: payload})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Status: statusError, Error: message})
}

// handleServiceError converts a service error to an HTTP status. Store
// failures never leak their cause.
func handleServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), domain.ErrorMessage(err))
}

func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidArgument, domain.KindConflict:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body into dst and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
