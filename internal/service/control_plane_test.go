package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resinat/Prism/internal/config"
	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/route"
	"github.com/Resinat/Prism/internal/transform"
)

type harness struct {
	cp          *ControlPlaneService
	backendHits *atomic.Int64
	failPrimary *atomic.Bool
}

func newHarness(t *testing.T) harness {
	t.Helper()

	var hits atomic.Int64
	backend := transform.BackendFunc(func(ctx context.Context, source string, p transform.Params) ([]transform.Source, error) {
		hits.Add(1)
		return []transform.Source{{Path: "/t" + source, Format: p.Format, Width: p.Width}}, nil
	})

	var failPrimary atomic.Bool
	probe := func(ctx context.Context, url string) (time.Duration, error) {
		if failPrimary.Load() && strings.HasPrefix(url, "https://img.example.com/") {
			return 0, errors.New("down")
		}
		return 5 * time.Millisecond, nil
	}

	selector := delivery.NewSelector(delivery.Config{
		Primary:   delivery.Endpoint{Name: "main", URL: "https://img.example.com"},
		Fallbacks: []delivery.Endpoint{{Name: "eu", URL: "https://img-eu.example.net"}},
		Probe:     probe,
	})
	classifier := route.NewClassifier(64, "v1")
	t.Cleanup(classifier.Close)

	runtimeCfg := &atomic.Pointer[config.RuntimeConfig]{}
	runtimeCfg.Store(config.NewDefaultRuntimeConfig())

	return harness{
		cp: &ControlPlaneService{
			Classifier: classifier,
			Dispatcher: transform.NewDispatcher(transform.Config{Backend: backend, URLBuilder: selector}),
			Selector:   selector,
			RuntimeCfg: runtimeCfg,
			Info:       SystemInfo{Version: "test"},
		},
		backendHits: &hits,
		failPrimary: &failPrimary,
	}
}

func assertServiceCode(t *testing.T, err error, code string) {
	t.Helper()
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("err = %v, want *ServiceError", err)
	}
	if svcErr.Code != code {
		t.Fatalf("code = %q, want %q (message %q)", svcErr.Code, code, svcErr.Message)
	}
}

func TestClassifyRoute(t *testing.T) {
	h := newHarness(t)

	got, err := h.cp.ClassifyRoute("/Blog/Post")
	if err != nil {
		t.Fatalf("ClassifyRoute: %v", err)
	}
	if got.Descriptor.Category != route.CategoryStatic {
		t.Fatalf("descriptor = %+v", got.Descriptor)
	}
	if got.Headers["Cache-Control"] == "" || got.Headers["Etag"] == "" {
		t.Fatalf("headers = %v", got.Headers)
	}

	_, err = h.cp.ClassifyRoute("")
	assertServiceCode(t, err, "INVALID_ARGUMENT")
}

func TestOptimizeImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	r, err := h.cp.OptimizeImage(ctx, transform.Request{Source: "/a.jpg", Options: transform.Options{Width: 320}})
	if err != nil {
		t.Fatalf("OptimizeImage: %v", err)
	}
	if len(r.Sources) != 1 || !strings.HasPrefix(r.Sources[0].URL, "https://img.example.com/t/a.jpg?w=320") {
		t.Fatalf("sources = %+v", r.Sources)
	}

	_, err = h.cp.OptimizeImage(ctx, transform.Request{Source: " "})
	assertServiceCode(t, err, "INVALID_ARGUMENT")
}

func TestOptimizeImages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.cp.OptimizeImages(ctx, []transform.Request{{Source: "/a.jpg"}, {Source: "/b.jpg"}})
	if err != nil {
		t.Fatalf("OptimizeImages: %v", err)
	}
	if len(out) != 2 || out[0].Fallback.Src != "/a.jpg" || out[1].Fallback.Src != "/b.jpg" {
		t.Fatalf("results = %+v", out)
	}

	_, err = h.cp.OptimizeImages(ctx, nil)
	assertServiceCode(t, err, "INVALID_ARGUMENT")
	_, err = h.cp.OptimizeImages(ctx, []transform.Request{{Source: "/a.jpg"}, {}})
	assertServiceCode(t, err, "INVALID_ARGUMENT")
}

func TestPurgeImages(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, src := range []string{"/a.jpg", "/b.jpg", "/c.jpg"} {
		if _, err := h.cp.OptimizeImage(ctx, transform.Request{Source: src}); err != nil {
			t.Fatalf("OptimizeImage: %v", err)
		}
	}

	if got := h.cp.PurgeImages(true); got.Removed != 0 || !got.ExpiredOnly {
		t.Fatalf("expired purge = %+v", got)
	}
	if got := h.cp.PurgeImages(false); got.Removed != 3 {
		t.Fatalf("full purge = %+v", got)
	}
	if h.cp.ImageStats().CacheSize != 0 {
		t.Fatal("cache not empty after purge")
	}
}

func TestDeliveryURLAndProbe(t *testing.T) {
	h := newHarness(t)

	url, err := h.cp.DeliveryURL(DeliveryURLRequest{
		Path:         "/a.jpg",
		Options:      transform.Options{Width: 100, Format: "auto"},
		Capabilities: delivery.Capabilities{AVIF: true},
	})
	if err != nil {
		t.Fatalf("DeliveryURL: %v", err)
	}
	if url != "https://img.example.com/a.jpg?w=100&q=75&f=avif&fit=cover" {
		t.Fatalf("url = %q", url)
	}

	url, err = h.cp.DeliveryURL(DeliveryURLRequest{Path: "/a.jpg", Endpoint: "EU"})
	if err != nil {
		t.Fatalf("DeliveryURL override: %v", err)
	}
	if !strings.HasPrefix(url, "https://img-eu.example.net/a.jpg") {
		t.Fatalf("override url = %q", url)
	}

	_, err = h.cp.DeliveryURL(DeliveryURLRequest{Path: "/a.jpg", Endpoint: "nowhere"})
	assertServiceCode(t, err, "NOT_FOUND")
	_, err = h.cp.DeliveryURL(DeliveryURLRequest{})
	assertServiceCode(t, err, "INVALID_ARGUMENT")

	h.failPrimary.Store(true)
	stats, err := h.cp.ProbeEndpoints(context.Background(), "")
	if err != nil {
		t.Fatalf("ProbeEndpoints: %v", err)
	}
	if stats.BestEndpoint != "https://img-eu.example.net" || len(stats.FailedEndpoints) != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if h.cp.DeliveryStats().ActiveCount != 1 {
		t.Fatalf("active = %d", h.cp.DeliveryStats().ActiveCount)
	}

	_, err = h.cp.ProbeEndpoints(context.Background(), "relative")
	assertServiceCode(t, err, "INVALID_ARGUMENT")
}

func TestGetSystemInfoAndConfig(t *testing.T) {
	h := newHarness(t)
	if h.cp.GetSystemInfo().Version != "test" {
		t.Fatalf("info = %+v", h.cp.GetSystemInfo())
	}
	if h.cp.GetRuntimeConfig().CacheCapacity != 500 {
		t.Fatalf("config = %+v", h.cp.GetRuntimeConfig())
	}
	empty := &ControlPlaneService{}
	if empty.GetRuntimeConfig() != nil {
		t.Fatal("nil runtime config pointer should yield nil")
	}
}
