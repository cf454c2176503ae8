package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ctxutil "gestaoplus/ms_nfse_core/internal/infrastructure/context"
	"gestaoplus/ms_nfse_core/internal/infrastructure/security"
)

// Doer abstracts *http.Client so adapters can take either a plain
// client or the traced one.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TracedClient wraps an HTTP client to log every outbound request and
// response with sensitive data redacted. It propagates the correlation
// ID as an X-Correlation-ID header so platform services can stitch
// traces together.
type TracedClient struct {
	client  *http.Client
	log     *slog.Logger
	service string
}

// TracedClientConfig holds configuration for the traced HTTP client.
type TracedClientConfig struct {
	Timeout         time.Duration
	MaxConnsPerHost int // 0 uses the default of 50
}

// NewTracedClient creates a traced HTTP client with connection pooling.
// The service name tags every log line so one logger serves multiple
// outbound integrations.
func NewTracedClient(cfg *TracedClientConfig, log *slog.Logger, service string) *TracedClient {
	if cfg == nil {
		cfg = &TracedClientConfig{Timeout: 30 * time.Second}
	}

	maxConnsPerHost := cfg.MaxConnsPerHost
	if maxConnsPerHost == 0 {
		maxConnsPerHost = 50
	}

	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &TracedClient{
		client: NewClient(&ClientConfig{
			Timeout:   cfg.Timeout,
			Transport: transport,
		}),
		log:     log,
		service: service,
	}
}

// Do executes an HTTP request, logging the call on both sides.
func (c *TracedClient) Do(req *http.Request) (*http.Response, error) {
	correlationID := ctxutil.GetCorrelationID(req.Context())
	operation := c.extractOperation(req)
	start := time.Now()

	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	c.log.Debug("outbound_request",
		"correlation_id", correlationID,
		"service", c.service,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
		"headers", security.SanitizeHeaders(req.Header),
	)

	resp, err := c.client.Do(req)
	durationMs := time.Since(start).Milliseconds()

	attrs := []any{
		"correlation_id", correlationID,
		"service", c.service,
		"operation", operation,
		"method", req.Method,
		"url", security.SanitizeURL(req.URL.String()),
		"duration_ms", durationMs,
	}

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		c.log.Error("outbound_request_failed", attrs...)
		return resp, err
	}

	attrs = append(attrs, "status", resp.StatusCode)
	switch {
	case resp.StatusCode >= 500:
		c.log.Error("outbound_response", attrs...)
	case resp.StatusCode >= 400:
		c.log.Warn("outbound_response", attrs...)
	default:
		c.log.Info("outbound_response", attrs...)
	}

	return resp, nil
}

// extractOperation derives a readable operation name from the request
// path, falling back to method plus service name.
func (c *TracedClient) extractOperation(req *http.Request) string {
	path := req.URL.Path
	parts := strings.Split(strings.Trim(path, "/"), "/")

	if len(parts) > 0 && parts[len(parts)-1] != "" {
		operation := parts[len(parts)-1]
		if len(operation) > 0 {
			operation = strings.ToUpper(operation[:1]) + operation[1:]
		}
		return operation
	}

	return fmt.Sprintf("%s_%s", req.Method, c.service)
}

// Client returns the underlying HTTP client for compatibility.
func (c *TracedClient) Client() *http.Client {
	return c.client
}
