// Package handlers contains HTTP request handlers for the StrayMap API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/straymap/straymap-server/internal/lifecycle"
)

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondLifecycleError maps the engine's error taxonomy onto HTTP statuses:
// conflict 409, permission 403, missing row 404, empty submission 400.
// Returns false when err was nil.
func respondLifecycleError(w http.ResponseWriter, err error, fallback string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, lifecycle.ErrAlreadyClaimed):
		respondError(w, http.StatusConflict, "Someone already took this case")
	case errors.Is(err, lifecycle.ErrNotClaimant):
		respondError(w, http.StatusForbidden, "Only the claimant can do this")
	case errors.Is(err, lifecycle.ErrNotFound):
		respondError(w, http.StatusNotFound, "Report not found")
	case errors.Is(err, lifecycle.ErrEmptyUpdate):
		respondError(w, http.StatusBadRequest, "Update needs text or at least one image")
	default:
		respondError(w, http.StatusInternalServerError, fallback)
	}
	return true
}
