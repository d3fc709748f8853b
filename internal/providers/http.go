package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"scenecast-backend/internal/models"
)

// client is the HTTP plumbing shared by the concrete adapters.
type client struct {
	provider   models.Provider
	baseURL    string
	timeout    time.Duration
	headers    map[string]string
	httpClient *http.Client
}

func newClient(provider models.Provider, baseURL string, timeout time.Duration, headers map[string]string) client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return client{
		provider: provider,
		baseURL:  baseURL,
		timeout:  timeout,
		headers:  headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends a JSON request and decodes a JSON response into out. out may be
// nil. Every call is bounded by the client timeout.
func (c *client) do(ctx context.Context, op, method, url string, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return rejected(c.provider, op, fmt.Errorf("failed to marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return rejected(c.provider, op, fmt.Errorf("failed to create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(c.provider, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(c.provider, op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(c.provider, op, resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return unavailable(c.provider, op, fmt.Errorf("failed to decode response: %w, body: %s", err, truncate(string(respBody), 256)))
	}
	return nil
}
