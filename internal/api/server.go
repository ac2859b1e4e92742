package api

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/Resinat/Prism/internal/config"
	"github.com/Resinat/Prism/internal/route"
	"github.com/Resinat/Prism/internal/service"
)

// Server wraps the HTTP server and mux for the Prism admin API.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// NewServer creates a new API server wired with all routes.
func NewServer(
	listenAddress string,
	port int,
	adminToken string,
	cp *service.ControlPlaneService,
	apiMaxBodyBytes int64,
) *Server {
	mux := http.NewServeMux()

	// Public (no auth)
	mux.Handle("GET /healthz", HandleHealthz())

	// Authenticated routes
	authed := http.NewServeMux()
	authed.Handle("GET /api/v1/system/info", HandleSystemInfo(cp))
	authed.Handle("GET /api/v1/system/config", HandleSystemConfig(cp))
	authed.Handle("GET /api/v1/system/config/default", HandleSystemDefaultConfig())
	authed.Handle("PATCH /api/v1/system/config", HandlePatchSystemConfig(cp))

	// Route classifier.
	authed.Handle("GET /api/v1/routes/classify", HandleClassifyRoute(cp))

	// Image dispatcher.
	authed.Handle("POST /api/v1/images/optimize", HandleOptimizeImage(cp))
	authed.Handle("POST /api/v1/images/optimize:batch", HandleOptimizeImageBatch(cp))
	authed.Handle("GET /api/v1/images/stats", HandleImageStats(cp))
	authed.Handle("POST /api/v1/images/actions/purge", HandlePurgeImages(cp))

	// Delivery endpoints.
	authed.Handle("GET /api/v1/delivery/stats", HandleDeliveryStats(cp))
	authed.Handle("GET /api/v1/delivery/url", HandleDeliveryURL(cp))
	authed.Handle("POST /api/v1/delivery/actions/probe", HandleProbeEndpoints(cp))

	limitedAuthed := RequestBodyLimitMiddleware(apiMaxBodyBytes, authed)
	mux.Handle("/api/", AuthMiddleware(adminToken, limitedAuthed))

	var inner http.Handler = mux
	if cp != nil && cp.Classifier != nil {
		inner = route.Middleware(cp.Classifier, mux)
	}
	handler := RequestIDMiddleware(inner)
	srv := &http.Server{
		Addr:    net.JoinHostPort(listenAddress, strconv.Itoa(port)),
		Handler: handler,
	}

	return &Server{
		httpServer: srv,
		handler:    handler,
	}
}

// NewServerFromEnv creates a server from the process environment config.
func NewServerFromEnv(envCfg *config.EnvConfig, cp *service.ControlPlaneService) *Server {
	return NewServer(envCfg.ListenAddress, envCfg.Port, envCfg.AdminToken, cp, int64(envCfg.APIMaxBodyBytes))
}

// ListenAndServe starts the HTTP server. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.handler
}
