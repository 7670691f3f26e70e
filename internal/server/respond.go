package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/setevik/sentinel/internal/store"
)

// requestError is a client-side parameter error; it maps to 400 and names
// the offending field.
type requestError struct {
	Field string
	Msg   string
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func badParam(field, msg string) error {
	return &requestError{Field: field, Msg: msg}
}

// intParam parses an integer query parameter, returning def when absent
// and a requestError when malformed or outside [min, max].
func intParam(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badParam(name, "must be an integer")
	}
	if n < min || n > max {
		return 0, badParam(name, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return n, nil
}

// boolParam parses a boolean query parameter, returning def when absent.
func boolParam(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badParam(name, "must be true or false")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// fail maps an error to its HTTP status: parameter errors are the
// client's fault, storage errors are ours, anything else is unexpected.
func fail(w http.ResponseWriter, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": reqErr.Msg,
			"field": reqErr.Field,
		})
		return
	}

	var storeErr *store.StorageError
	if errors.As(err, &storeErr) {
		slog.Error("storage failure serving request", "op", storeErr.Op, "error", storeErr.Err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "storage failure",
		})
		return
	}

	slog.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal error",
	})
}
