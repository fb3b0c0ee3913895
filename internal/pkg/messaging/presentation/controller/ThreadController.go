package controller

import (
	"errors"
	"net/http"

	"supportchat/internal/pkg/messaging/application/usecase"
	domain "supportchat/internal/pkg/messaging/domain"
)

// One controller per endpoint; shared helpers live here.

// statusFor maps domain and application errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrPersistence):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
