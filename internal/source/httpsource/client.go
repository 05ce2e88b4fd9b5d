package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // Retry-After header value for 429s
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// client is an HTTP client with optional Bearer auth and retry logic.
type client struct {
	token      string
	httpClient *http.Client
	backoff    time.Duration
}

const maxRetries = 3

// get fetches url and returns the body and its Content-Type. Returns
// *APIError for non-2xx responses. Retries on 429 (honouring Retry-After)
// and 5xx with exponential backoff from c.backoff. Max 3 retries.
func (c *client) get(ctx context.Context, url string) ([]byte, string, error) {
	var lastErr *APIError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(c.delay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, "", ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, "", err
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, "", err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, resp.Header.Get("Content-Type"), nil
		}

		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			apiErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = apiErr
		case resp.StatusCode >= 500:
			lastErr = apiErr
		default:
			return nil, "", apiErr
		}
	}
	return nil, "", lastErr
}

// delay returns the wait before a retry attempt.
func (c *client) delay(attempt int, lastErr *APIError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.backoff << (attempt - 1)
}
