package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finboard/backend-go/internal/services"
)

// statusOf maps the error taxonomy onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingParam),
		errors.Is(err, services.ErrUnsupportedOperation),
		errors.Is(err, services.ErrInvalidWidget),
		errors.Is(err, services.ErrHostNotAllowed),
		errors.Is(err, services.ErrUnsupportedVersion),
		errors.Is(err, services.ErrNoSymbol):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrWidgetNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateWidget):
		return http.StatusConflict
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrInvalidParam):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeMessage(w, status, services.PublicMessage(err))
}

func (a *API) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		a.logger.Warn("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, err)
}
