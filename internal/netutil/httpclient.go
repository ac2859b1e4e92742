package netutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultUserAgent = "Prism/1.0"

// maxResponseBytes caps how much of an upstream JSON response is read.
const maxResponseBytes = 4 << 20

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http: unexpected status %d from %s", e.StatusCode, e.URL)
}

// RateLimited reports whether the upstream asked the caller to back off.
func (e *HTTPStatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// NonRetryableError indicates request setup failed before any transport
// attempt was made (for example, malformed URL or unencodable body).
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("http: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err wraps a 429 HTTPStatusError.
func IsRateLimited(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.RateLimited()
}

// PostJSON marshals in, POSTs it to url and decodes a 2xx JSON response into
// out. Timeout and cancellation are controlled solely by ctx.
func PostJSON(ctx context.Context, client *http.Client, url, userAgent string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return &NonRetryableError{Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &NonRetryableError{Err: err}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("http: decode response from %s: %w", url, err)
	}
	return nil
}
