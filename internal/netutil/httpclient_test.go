package netutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSON_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type: got %q", ct)
		}
		if ua := r.Header.Get("User-Agent"); ua != "prism-test" {
			t.Errorf("user-agent: got %q", ua)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["source"]})
	}))
	defer srv.Close()

	var out map[string]string
	err := PostJSON(context.Background(), srv.Client(), srv.URL, "prism-test", map[string]string{"source": "/a.jpg"}, &out)
	if err != nil {
		t.Fatalf("PostJSON: %v", err)
	}
	if out["echo"] != "/a.jpg" {
		t.Fatalf("echo: got %q", out["echo"])
	}
}

func TestPostJSON_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := PostJSON(context.Background(), srv.Client(), srv.URL, "", struct{}{}, nil)
	if !IsRateLimited(err) {
		t.Fatalf("expected rate-limited error, got %v", err)
	}
}

func TestPostJSON_MalformedURLIsNonRetryable(t *testing.T) {
	err := PostJSON(context.Background(), nil, "://bad", "", struct{}{}, nil)
	var nonRetryable *NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected NonRetryableError, got %v", err)
	}
}

func TestPostJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	if err := PostJSON(context.Background(), srv.Client(), srv.URL, "", struct{}{}, &out); err == nil {
		t.Fatal("expected decode error")
	}
}
