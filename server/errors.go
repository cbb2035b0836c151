package server

import (
	"net/http"

	"github.com/teranos/vacancy/errors"
)

// statusFor maps the error taxonomy onto HTTP status codes.
// Anything outside the taxonomy is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrAdmissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrDuplicateApplication), errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, errors.ErrAuthenticity), errors.Is(err, errors.ErrCorrelation):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrReconciliation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is what the caller sees. User-correctable errors carry their
// message; internal, configuration and webhook failures stay generic.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, errors.ErrAdmissionDenied):
		return "forbidden"
	case errors.IsAny(err, errors.ErrAuthenticity, errors.ErrCorrelation, errors.ErrReconciliation):
		return "event rejected"
	}
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
