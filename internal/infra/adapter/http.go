package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAdapter performs sync attempts by POSTing to an external system's
// endpoint. The request body carries the operation name and the opaque
// payload; any non-2xx status is a failed attempt with the response body as
// the failure message.
type HTTPAdapter struct {
	systemName string
	endpoint   string
	httpClient *http.Client
}

// NewHTTPAdapter creates an adapter for one external system.
func NewHTTPAdapter(systemName, endpoint string, timeout time.Duration) *HTTPAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPAdapter{
		systemName: systemName,
		endpoint:   endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type attemptRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Attempt performs one sync call.
func (a *HTTPAdapter) Attempt(
	ctx context.Context,
	_ string,
	operation string,
	payload []byte,
) ([]byte, error) {
	body, err := json.Marshal(attemptRequest{Operation: operation, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sync call to %s: %w", a.systemName, err)
	}
	defer resp.Body.Close()

	// Cap the body read; failure messages end up in the log entry's error
	// history and responses are stored verbatim.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", a.systemName, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned %d: %s", a.systemName, resp.StatusCode, truncate(string(respBody), 512))
	}
	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
