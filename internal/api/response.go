package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/safar/go-pos-store/internal/cart"
	"github.com/safar/go-pos-store/internal/database"
	"github.com/safar/go-pos-store/internal/scanner"
)

type apiError struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	writeJSON(w, status, apiError{
		Error:   code,
		Message: message,
		Details: details,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", map[string]any{"error": err.Error()})
		return false
	}

	if err := dec.Decode(&struct{}{}); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body", map[string]any{"error": "extra data after json"})
		return false
	}

	return true
}

// writeServiceError maps domain errors onto HTTP statuses. action names the failed
// operation in the 500 message.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, database.ErrLockTimeout),
		errors.Is(err, database.ErrTransactionFailed) && database.IsRetryable(err):
		log.Printf("%s: %v", action, err)
		writeError(w, http.StatusServiceUnavailable, "busy", "failed to "+action+"; try again", nil)
	case errors.Is(err, database.ErrTransactionFailed):
		log.Printf("%s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "transaction_failed", "failed to "+action+"; nothing was saved", nil)
	case errors.Is(err, database.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", err.Error(), nil)
	case errors.Is(err, database.ErrInsufficientTender):
		writeError(w, http.StatusBadRequest, "insufficient_tender", err.Error(), nil)
	case errors.Is(err, database.ErrValidation), errors.Is(err, scanner.ErrNoBarcode):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, database.ErrNotFound), errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, database.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "duplicate", err.Error(), nil)
	case errors.Is(err, scanner.ErrDuplicateScan):
		writeError(w, http.StatusConflict, "duplicate_scan", err.Error(), nil)
	default:
		log.Printf("%s: %v", action, err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to "+action, nil)
	}
}
