package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestID_GeneratedAndForwarded(t *testing.T) {
	var seen string
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
		t.Fatalf("generated id %q, header %q", seen, rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Fatalf("forwarded id = %q", seen)
	}
}

func TestError_Envelope(t *testing.T) {
	h := MiddlewareRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(r.Context(), w, http.StatusNotFound, "not_found", "conversation not found")
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "r-1")
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "not_found" || body.Error.RequestID != "r-1" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestLogging_RecordsStatus(t *testing.T) {
	lrw := &logResponseWriter{ResponseWriter: httptest.NewRecorder()}
	MiddlewareLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]int{"n": 1})
	})).ServeHTTP(lrw, httptest.NewRequest(http.MethodGet, "/x", nil))

	if lrw.status != http.StatusOK || lrw.bytes == 0 {
		t.Fatalf("status=%d bytes=%d", lrw.status, lrw.bytes)
	}
}
