package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeServiceError logs err with its kind and writes the mapped response.
// Hints attached to user-facing errors are returned alongside the message.
func (s *VacancyServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context(), s.logger).With(
		logger.FieldMethod, r.Method,
		logger.FieldPath, r.URL.Path,
		logger.FieldError, err,
		logger.FieldErrorKind, errors.Kind(err))
	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed")
	} else {
		log.Debugw("Request rejected", logger.FieldStatus, status)
	}

	body := map[string]string{"error": publicMessage(err)}
	if status < http.StatusInternalServerError {
		if hint := errors.FlattenHints(err); hint != "" {
			body["hint"] = hint
		}
	}
	writeJSON(w, status, body)
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// splitList reads a comma separated query parameter
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
