// Package config handles environment-based configuration loading and runtime config models.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/Resinat/Prism/internal/buildinfo"
	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings (not hot-updatable).
type EnvConfig struct {
	// Network
	ListenAddress string
	Port          int

	// API
	APIMaxBodyBytes int
	AdminToken      string

	// Transformation backend
	BackendURL       string
	BackendUserAgent string
	BackendRateLimit float64 // requests per second; 0 disables throttling
	BackendBurst     int

	// Delivery endpoints
	EndpointsFile string
	Endpoints     EndpointSet
	ProbePath     string

	// Route classifier
	RouteMemoEntries int
	ETagSalt         string

	// Dispatcher
	CacheSweepSchedule string
	StatsWindow        int
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Network ---
	cfg.ListenAddress = strings.TrimSpace(envStr("PRISM_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("PRISM_PORT", 2270, &errs)

	// --- API ---
	cfg.APIMaxBodyBytes = envInt("PRISM_API_MAX_BODY_BYTES", 1<<20, &errs)
	adminToken, hasAdminToken := os.LookupEnv("PRISM_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Backend ---
	cfg.BackendURL = strings.TrimSpace(envStr("PRISM_BACKEND_URL", ""))
	cfg.BackendUserAgent = envStr("PRISM_BACKEND_USER_AGENT", "Prism/"+buildinfo.Version)
	cfg.BackendRateLimit = envFloat("PRISM_BACKEND_RATE_LIMIT", 0, &errs)
	cfg.BackendBurst = envInt("PRISM_BACKEND_BURST", 10, &errs)

	// --- Endpoints ---
	cfg.EndpointsFile = strings.TrimSpace(envStr("PRISM_ENDPOINTS_FILE", ""))
	cfg.ProbePath = envStr("PRISM_PROBE_PATH", "/favicon.ico")
	if cfg.EndpointsFile != "" {
		set, err := LoadEndpointsFile(cfg.EndpointsFile)
		if err != nil {
			errs = append(errs, fmt.Sprintf("PRISM_ENDPOINTS_FILE: %v", err))
		} else {
			cfg.Endpoints = set
			if set.ProbePath != "" {
				cfg.ProbePath = set.ProbePath
			}
		}
	} else {
		cfg.Endpoints.Primary = Endpoint{URL: strings.TrimSpace(envStr("PRISM_PRIMARY_ENDPOINT", ""))}
		for _, raw := range envStringSlice("PRISM_FALLBACK_ENDPOINTS", nil, &errs) {
			cfg.Endpoints.Fallbacks = append(cfg.Endpoints.Fallbacks, Endpoint{URL: strings.TrimSpace(raw)})
		}
	}

	// --- Route classifier ---
	cfg.RouteMemoEntries = envInt("PRISM_ROUTE_MEMO_ENTRIES", 4096, &errs)
	cfg.ETagSalt = envStr("PRISM_ETAG_SALT", buildinfo.Version)

	// --- Dispatcher ---
	cfg.CacheSweepSchedule = envStr("PRISM_CACHE_SWEEP_SCHEDULE", "*/5 * * * *")
	cfg.StatsWindow = envInt("PRISM_STATS_WINDOW", 1000, &errs)

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "PRISM_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "PRISM_LISTEN_ADDRESS must not be empty")
	}
	validatePort("PRISM_PORT", cfg.Port, &errs)
	validatePositive("PRISM_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	if cfg.BackendURL == "" {
		errs = append(errs, "PRISM_BACKEND_URL is required")
	} else if !isHTTPURL(cfg.BackendURL) {
		errs = append(errs, fmt.Sprintf("PRISM_BACKEND_URL: must be an http/https absolute URL, got %q", cfg.BackendURL))
	}
	if cfg.BackendRateLimit < 0 {
		errs = append(errs, "PRISM_BACKEND_RATE_LIMIT must be non-negative")
	}
	validatePositive("PRISM_BACKEND_BURST", cfg.BackendBurst, &errs)

	if cfg.Endpoints.Primary.URL == "" {
		errs = append(errs, "PRISM_PRIMARY_ENDPOINT is required (or set PRISM_ENDPOINTS_FILE)")
	}
	for _, ep := range cfg.Endpoints.All() {
		if ep.URL != "" && !isHTTPURL(ep.URL) {
			errs = append(errs, fmt.Sprintf("endpoint %q: must be an http/https absolute URL", ep.URL))
		}
	}
	if !strings.HasPrefix(cfg.ProbePath, "/") {
		errs = append(errs, fmt.Sprintf("PRISM_PROBE_PATH: must start with '/', got %q", cfg.ProbePath))
	}

	validatePositive("PRISM_ROUTE_MEMO_ENTRIES", cfg.RouteMemoEntries, &errs)
	if _, err := cron.ParseStandard(cfg.CacheSweepSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("PRISM_CACHE_SWEEP_SCHEDULE: invalid cron expression %q: %v", cfg.CacheSweepSchedule, err))
	}
	validatePositive("PRISM_STATS_WINDOW", cfg.StatsWindow, &errs)

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envFloat(key string, defaultVal float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid number %q", key, v))
		return defaultVal
	}
	return f
}

func envStringSlice(key string, defaultVal []string, errs *[]string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid JSON string array %q", key, v))
		return defaultVal
	}
	return out
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
