package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

type envelope map[string]any

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// OK wraps data in {"data": ...}.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{"data": data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{"data": data})
}

// Error writes {"error": {"code", "message", "request_id"}}.
func Error(ctx context.Context, w http.ResponseWriter, status int, code, msg string) {
	body := envelope{
		"code":    code,
		"message": msg,
	}
	if reqID, ok := RequestIDFromContext(ctx); ok {
		body["request_id"] = reqID
	}
	JSON(w, status, envelope{"error": body})
}
