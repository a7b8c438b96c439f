package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tableflow/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// idParam parses a positive int64 URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// statusFor maps a service error to an HTTP status. Unknown errors map to 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrTotalOutOfRange),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrSessionInactive),
		errors.Is(err, service.ErrSessionMismatch),
		errors.Is(err, service.ErrMenuItemNotFound),
		errors.Is(err, service.ErrMenuItemUnavailable),
		errors.Is(err, service.ErrTableInactive),
		errors.Is(err, service.ErrInvalidPinFormat):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrWrongPin):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrBranchNotFound),
		errors.Is(err, service.ErrTableNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the mapped status. Internal failures are
// logged under op and hidden from the client.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: %s: %v", op, err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
