package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"
	"github.com/Tobby-pro/New-Rental-Stack/pkg/httputil"
)

func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrTransientStore), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := toHTTP(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		slog.Error(op, slog.Any("err", err))
		msg = "internal error"
	case http.StatusServiceUnavailable:
		slog.Warn(op, slog.Any("err", err))
		msg = "storage temporarily unavailable, retry later"
	}
	httputil.Error(r.Context(), w, status, code, msg)
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	httputil.Error(r.Context(), w, http.StatusBadRequest, "bad_request", msg)
}

func forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	httputil.Error(r.Context(), w, http.StatusForbidden, "forbidden", msg)
}
