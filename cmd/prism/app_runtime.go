package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Resinat/Prism/internal/api"
	"github.com/Resinat/Prism/internal/buildinfo"
	"github.com/Resinat/Prism/internal/config"
	"github.com/Resinat/Prism/internal/delivery"
	"github.com/Resinat/Prism/internal/netutil"
	"github.com/Resinat/Prism/internal/route"
	"github.com/Resinat/Prism/internal/service"
	"github.com/Resinat/Prism/internal/transform"
	"golang.org/x/time/rate"
)

type prismApp struct {
	envCfg     *config.EnvConfig
	runtimeCfg *atomic.Pointer[config.RuntimeConfig]
	classifier *route.Classifier
	selector   *delivery.Selector
	dispatcher *transform.Dispatcher
	sweeper    *transform.Sweeper
	apiSrv     *api.Server
}

func run() error {
	envCfg, err := config.LoadEnvConfig()
	if err != nil {
		return err
	}
	if config.IsWeakToken(envCfg.AdminToken) {
		log.Printf("WARNING: PRISM_ADMIN_TOKEN is weak (score %d/4); use a longer random token", config.TokenScore(envCfg.AdminToken))
	} else if envCfg.AdminToken == "" {
		log.Println("WARNING: PRISM_ADMIN_TOKEN is empty; admin API authentication is disabled")
	}

	app, err := newPrismApp(envCfg)
	if err != nil {
		return err
	}
	app.startBackgroundServices()

	serverErrCh := app.startServers()
	runtimeErr := waitForShutdown(serverErrCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	app.shutdown(ctx)

	if runtimeErr != nil {
		return fmt.Errorf("runtime server error: %w", runtimeErr)
	}
	return nil
}

func newPrismApp(envCfg *config.EnvConfig) (*prismApp, error) {
	app := &prismApp{
		envCfg:     envCfg,
		runtimeCfg: &atomic.Pointer[config.RuntimeConfig]{},
	}
	app.runtimeCfg.Store(config.NewDefaultRuntimeConfig())

	app.classifier = route.NewClassifier(envCfg.RouteMemoEntries, envCfg.ETagSalt)
	app.selector = newSelector(envCfg, app.runtimeCfg, netutil.HTTPProbe(nil, envCfg.BackendUserAgent))
	app.dispatcher = newDispatcher(envCfg, app.runtimeCfg.Load(), app.selector)

	sweeper, err := transform.NewSweeper(app.dispatcher, envCfg.CacheSweepSchedule)
	if err != nil {
		app.classifier.Close()
		return nil, err
	}
	app.sweeper = sweeper

	cp := &service.ControlPlaneService{
		Classifier: app.classifier,
		Dispatcher: app.dispatcher,
		Selector:   app.selector,
		RuntimeCfg: app.runtimeCfg,
		EnvCfg:     envCfg,
		Info: service.SystemInfo{
			Version:   buildinfo.Version,
			GitCommit: buildinfo.GitCommit,
			BuildTime: buildinfo.BuildTime,
			StartedAt: time.Now().UTC(),
		},
	}
	app.apiSrv = api.NewServerFromEnv(envCfg, cp)
	return app, nil
}

func newSelector(
	envCfg *config.EnvConfig,
	runtimeCfg *atomic.Pointer[config.RuntimeConfig],
	probe delivery.ProbeFunc,
) *delivery.Selector {
	toEndpoint := func(e config.Endpoint) delivery.Endpoint {
		return delivery.Endpoint{Name: e.Name, URL: e.URL}
	}
	fallbacks := make([]delivery.Endpoint, 0, len(envCfg.Endpoints.Fallbacks))
	for _, e := range envCfg.Endpoints.Fallbacks {
		fallbacks = append(fallbacks, toEndpoint(e))
	}
	return delivery.NewSelector(delivery.Config{
		Primary:   toEndpoint(envCfg.Endpoints.Primary),
		Fallbacks: fallbacks,
		Probe:     probe,
		ProbePath: envCfg.ProbePath,
		ProbeInterval: func() time.Duration {
			return runtimeCfg.Load().ProbeInterval.Std()
		},
		ProbeTimeout: func() time.Duration {
			return runtimeCfg.Load().ProbeTimeout.Std()
		},
		LatencyDecayWindow: func() time.Duration {
			return runtimeCfg.Load().LatencyDecayWindow.Std()
		},
	})
}

func newDispatcher(envCfg *config.EnvConfig, rc *config.RuntimeConfig, urls transform.URLBuilder) *transform.Dispatcher {
	var limiter *rate.Limiter
	if envCfg.BackendRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(envCfg.BackendRateLimit), envCfg.BackendBurst)
	}
	return transform.NewDispatcher(transform.Config{
		Backend: &transform.HTTPBackend{
			URL:       envCfg.BackendURL,
			UserAgent: envCfg.BackendUserAgent,
		},
		URLBuilder:       urls,
		Limiter:          limiter,
		DefaultQuality:   rc.DefaultQuality,
		CacheCapacity:    rc.CacheCapacity,
		CacheTTL:         rc.CacheTTL.Std(),
		BackendTimeout:   rc.BackendTimeout.Std(),
		MaxBatchSize:     rc.MaxBatchSize,
		BatchConcurrency: rc.BatchConcurrency,
		StatsWindow:      envCfg.StatsWindow,
	})
}

func (a *prismApp) startBackgroundServices() {
	a.selector.Start()
	log.Printf("Delivery selector started (%d endpoints)", len(a.envCfg.Endpoints.All()))
	a.sweeper.Start()
	log.Printf("Cache sweeper started (schedule %q)", a.envCfg.CacheSweepSchedule)
}

func (a *prismApp) startServers() <-chan error {
	serverErrCh := make(chan error, 1)
	go func() {
		log.Printf("Prism API server starting on %s", formatListenURL(a.envCfg.ListenAddress, a.envCfg.Port))
		err := a.apiSrv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return
		}
		select {
		case serverErrCh <- fmt.Errorf("api server: %w", err):
		default:
		}
	}()
	return serverErrCh
}

func waitForShutdown(serverErrCh <-chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Printf("Received signal %s, shutting down...", sig)
		return nil
	case err := <-serverErrCh:
		log.Printf("Received server runtime error (%v), shutting down...", err)
		return err
	}
}

func formatListenURL(listenAddress string, port int) string {
	return "http://" + net.JoinHostPort(listenAddress, strconv.Itoa(port))
}

func (a *prismApp) shutdown(ctx context.Context) {
	if err := a.apiSrv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Prism API server stopped")

	a.sweeper.Stop()
	log.Println("Cache sweeper stopped")

	a.selector.Stop()
	log.Println("Delivery selector stopped")

	a.classifier.Close()
	log.Println("Server stopped")
}
