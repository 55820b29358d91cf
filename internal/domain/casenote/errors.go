package casenote

import (
	"context"
	"errors"
	"net/http"
)

// Domain errors for case-note reads.
var (
	ErrNotFound      = errors.New("case note request not found")
	ErrForbidden     = errors.New("case note request not visible to viewer")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrNoViewer      = errors.New("request has no usable viewer identity")
	ErrUnavailable   = errors.New("case note source unavailable")
)

// MapHTTPStatus maps case-note domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoViewer):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
