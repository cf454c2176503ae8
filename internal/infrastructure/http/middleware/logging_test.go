package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	ctxutil "gestaoplus/ms_nfse_core/internal/infrastructure/context"
	"gestaoplus/ms_nfse_core/internal/testutil"
)

func TestRequestLogger_StatusClasses(t *testing.T) {
	mw := RequestLogger(testutil.NewTestLogger())

	statuses := []int{
		http.StatusOK,
		http.StatusMovedPermanently,
		http.StatusBadRequest,
		http.StatusInternalServerError,
	}

	for _, status := range statuses {
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("response body"))
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != status {
			t.Errorf("expected status %d passed through, got %d", status, w.Code)
		}
	}
}

func TestRequestLogger_PromotesRequestIDToCorrelationID(t *testing.T) {
	mw := RequestLogger(testutil.NewTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chimw.RequestIDKey, "req-42"))

	var seen string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ctxutil.GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req-42" {
		t.Errorf("expected correlation ID req-42 in handler context, got %q", seen)
	}
}

func TestStatusRecorder_CapturesHeaderAndBytes(t *testing.T) {
	base := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: base}

	rec.WriteHeader(http.StatusNotFound)
	n, err := rec.Write([]byte("missing"))

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len("missing") {
		t.Errorf("expected %d bytes written, got %d", len("missing"), n)
	}
	if rec.status != http.StatusNotFound {
		t.Errorf("expected recorded status 404, got %d", rec.status)
	}
	if base.Code != http.StatusNotFound {
		t.Errorf("expected underlying status 404, got %d", base.Code)
	}
	if rec.bytes != int64(len("missing")) {
		t.Errorf("expected %d bytes recorded, got %d", len("missing"), rec.bytes)
	}
}

func TestStatusRecorder_ImplicitOKOnWrite(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}

	rec.Write([]byte("body"))

	if rec.status != http.StatusOK {
		t.Errorf("expected implicit 200 on bare write, got %d", rec.status)
	}
}
