package testevents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient wraps http.Client with JSON helpers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil). Any status other than want is an error.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any, want int) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode: %w", method, path, err)
		}
	}
	return nil
}

// submitEvents posts events in order, batchSize at a time, pausing pace
// between batches.
func submitEvents(ctx context.Context, c *HTTPClient, events []Event, batchSize int, pace time.Duration, stats *Stats) error {
	if batchSize <= 0 {
		batchSize = len(events)
	}
	for start := 0; start < len(events); start += batchSize {
		end := min(start+batchSize, len(events))
		body := struct {
			Events []Event `json:"events"`
		}{events[start:end]}

		var ack struct {
			Accepted int `json:"accepted"`
		}
		if err := c.do(ctx, http.MethodPost, "/input", body, &ack, http.StatusAccepted); err != nil {
			return fmt.Errorf("batch at %d: %w", start, err)
		}
		stats.EventsSubmitted += ack.Accepted

		if pace > 0 && end < len(events) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pace):
			}
		}
	}
	return nil
}
