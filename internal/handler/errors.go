package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"eum-chat/internal/domain"
)

// writeFailure maps the shared failure taxonomy onto HTTP status codes.
// Both chat handlers use it, so the REST adapter can never drift from
// the rules the services enforce.
func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotParticipant),
		errors.Is(err, domain.ErrFarmOwnerMismatch),
		errors.Is(err, domain.ErrRoomClosed):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrFarmNotFound),
		errors.Is(err, domain.ErrMemberNotFound):
		status = http.StatusNotFound
	}

	if domain.IsFailure(err) {
		message = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
