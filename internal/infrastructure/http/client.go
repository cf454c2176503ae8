package http

import (
	"net/http"
	"time"
)

// ClientConfig tunes the shared outbound client factory.
type ClientConfig struct {
	Timeout       time.Duration
	Transport     http.RoundTripper
	CheckRedirect func(req *http.Request, via []*http.Request) error
}

// NewClient builds an *http.Client from cfg. A nil cfg gets a plain
// client with a 30s timeout.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{Timeout: 30 * time.Second}
	}

	c := &http.Client{Timeout: cfg.Timeout}
	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}
	if cfg.CheckRedirect != nil {
		c.CheckRedirect = cfg.CheckRedirect
	}
	return c
}
