// Package httpblob stores generated PDFs in the platform's object
// storage service over its HTTP API.
package httpblob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gestaoplus/ms_nfse_core/internal/core/storage"
	infrahttp "gestaoplus/ms_nfse_core/internal/infrastructure/http"
)

// DefaultTimeout is the default timeout for storage API requests.
const DefaultTimeout = 30 * time.Second

// Client implements the storage.BlobStore interface.
type Client struct {
	baseURL string
	apiKey  string
	client  infrahttp.Doer
	log     *slog.Logger
}

// NewClient creates a new blob storage client.
func NewClient(baseURL, apiKey string, httpClient infrahttp.Doer, log *slog.Logger) storage.BlobStore {
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

// putResponse is the JSON answer of the storage API.
type putResponse struct {
	URL string `json:"url"`
}

// Put uploads the blob and returns its public URL.
func (c *Client) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("blob key is required")
	}

	target := c.baseURL + "/v1/blobs/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("Uploading blob", "key", key, "size", len(data))

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("Error calling storage API", "error", err, "key", key)
		return "", fmt.Errorf("storage API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		c.log.Warn("Storage API returned non-success status", "status", resp.StatusCode, "body", string(body), "key", key)
		return "", fmt.Errorf("storage API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	var parsed putResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse storage API response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("storage API response has no url")
	}

	return parsed.URL, nil
}
