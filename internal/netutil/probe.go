package netutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"
)

// HTTPProbe returns a probe func that performs a lightweight existence check
// (HEAD, retried as GET when the origin rejects HEAD) and reports the
// observed latency. Any status >= 400 is a failure.
//
// Latency is time-to-first-byte measured from the moment a connection is
// obtained, so dial and TLS setup on fresh connections do not skew it
// against reused ones.
func HTTPProbe(client *http.Client, userAgent string) func(ctx context.Context, url string) (time.Duration, error) {
	if client == nil {
		client = &http.Client{
			// Redirects count as existence; do not follow them.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return func(ctx context.Context, url string) (time.Duration, error) {
		latency, status, err := probeOnce(ctx, client, http.MethodHead, url, userAgent)
		if err == nil && status == http.StatusMethodNotAllowed {
			latency, status, err = probeOnce(ctx, client, http.MethodGet, url, userAgent)
		}
		if err != nil {
			return 0, err
		}
		if status >= http.StatusBadRequest {
			return 0, &HTTPStatusError{StatusCode: status, URL: url}
		}
		return latency, nil
	}
}

func probeOnce(ctx context.Context, client *http.Client, method, url, userAgent string) (time.Duration, int, error) {
	var gotConn, firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotConn:              func(httptrace.GotConnInfo) { gotConn = time.Now() },
		GotFirstResponseByte: func() { firstByte = time.Now() },
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), method, url, nil)
	if err != nil {
		return 0, 0, &NonRetryableError{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	requestStart := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("probe: %s %s: %w", method, url, err)
	}
	requestDone := time.Now()
	// Only the status matters; drain a little so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	latency := requestDone.Sub(requestStart)
	if !gotConn.IsZero() && firstByte.After(gotConn) {
		latency = firstByte.Sub(gotConn)
	}
	if latency <= 0 {
		latency = time.Nanosecond
	}
	return latency, resp.StatusCode, nil
}
