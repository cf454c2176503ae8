package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphealth "gestaoplus/ms_nfse_core/internal/application/health"
	corehealth "gestaoplus/ms_nfse_core/internal/core/health"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("pool exhausted") }

func TestNewHandler(t *testing.T) {
	service := &apphealth.Service{}
	handler := NewHandler(service)

	if handler == nil {
		t.Fatal("expected handler to be created, got nil")
	}

	if handler.service != service {
		t.Error("expected handler to have the provided service")
	}
}

func TestHandler_Status(t *testing.T) {
	meta := apphealth.Metadata{
		Service:     "ms_nfse_core",
		Version:     "1.0.0",
		Environment: "test",
	}

	service := apphealth.NewService(meta)
	handler := NewHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status code %d, got %d", http.StatusOK, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var status corehealth.Status
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if status.Service != meta.Service {
		t.Errorf("expected service %q, got %q", meta.Service, status.Service)
	}

	if status.Status != "UP" {
		t.Errorf("expected status 'UP', got %q", status.Status)
	}
}

func TestHandler_Status_Degraded(t *testing.T) {
	service := apphealth.NewService(apphealth.Metadata{Service: "ms_nfse_core", Version: "1.0.0", Environment: "test"}).
		WithDependency("database", failingPinger{})
	handler := NewHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handler.Status(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status code %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}
