// Package mail delivers notification e-mails through the platform's
// transactional mail API.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gestaoplus/ms_nfse_core/internal/core/notification"
	infrahttp "gestaoplus/ms_nfse_core/internal/infrastructure/http"
)

// DefaultTimeout is the default timeout for mail API requests.
const DefaultTimeout = 15 * time.Second

// Client implements the notification.Sink interface against the mail
// API's JSON endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  infrahttp.Doer
	log     *slog.Logger
}

// NewClient creates a new mail API client.
func NewClient(baseURL, apiKey string, httpClient infrahttp.Doer, log *slog.Logger) notification.Sink {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  httpClient,
		log:     log,
	}
}

// sendRequest is the JSON body the mail API expects.
type sendRequest struct {
	To            []string `json:"to"`
	Subject       string   `json:"subject"`
	Body          string   `json:"body"`
	AttachmentURL string   `json:"attachment_url,omitempty"`
}

// Send posts one message to the mail API.
func (c *Client) Send(ctx context.Context, msg notification.Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}

	payload, err := json.Marshal(sendRequest{
		To:            msg.To,
		Subject:       msg.Subject,
		Body:          msg.Body,
		AttachmentURL: msg.AttachmentURL,
	})
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("Sending notification mail", "recipients", len(msg.To), "subject", msg.Subject)

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Error calling mail API", "error", err)
		return fmt.Errorf("mail API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.log.Warn("Mail API returned non-success status", "status", resp.StatusCode, "body", string(body))
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	return nil
}
