// Package handler implements the JSON HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/household"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// errorStatus maps a service error to an HTTP status and a client-safe message.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, household.ErrValidation), errors.Is(err, chore.ErrValidation):
		return http.StatusBadRequest, validationMessage(err)
	case errors.Is(err, household.ErrInvalidCode):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, household.ErrHouseholdNotFound), errors.Is(err, chore.ErrHouseholdNotFound),
		errors.Is(err, chore.ErrChoreNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, household.ErrNotMember), errors.Is(err, chore.ErrNotMember),
		errors.Is(err, household.ErrNotAdmin), errors.Is(err, chore.ErrNotAdmin):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, household.ErrAlreadyMember), errors.Is(err, household.ErrLastAdmin),
		errors.Is(err, chore.ErrInvalidTransition), errors.Is(err, chore.ErrNotYetAvailable):
		return http.StatusConflict, err.Error()
	case errors.Is(err, household.ErrInviteUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// validationMessage strips the sentinel prefix from "validation failed: msg".
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, "validation failed: "); i >= 0 {
		return msg[i+len("validation failed: "):]
	}
	return msg
}

// fail writes the mapped error response. Server errors are logged.
func fail(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, "error", err, "user_id", auth.UserID(r.Context()))
	}
	writeError(w, status, msg)
}
