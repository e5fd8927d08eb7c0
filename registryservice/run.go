package registryservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/adaptive-alerting/detector-registry/internal/api"
	"github.com/adaptive-alerting/detector-registry/internal/clock"
	"github.com/adaptive-alerting/detector-registry/internal/config"
	"github.com/adaptive-alerting/detector-registry/internal/detector"
	"github.com/adaptive-alerting/detector-registry/internal/factory"
	"github.com/adaptive-alerting/detector-registry/internal/health"
	"github.com/adaptive-alerting/detector-registry/internal/logger"
	"github.com/adaptive-alerting/detector-registry/internal/store"
)

// Run starts the detector registry HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("detector-registry")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Msg("Detector registry starting")

	// Cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}

	svcHealth := startHealthCheckers(ctx, cfg, log, st)
	router := buildRouter(st, log, svcHealth.IsHealthy)

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildRouter wires HTTP routes to handlers. Literal detector subpaths are
// registered before the {uuid} routes so the temporal query endpoints are
// not captured as UUIDs.
func buildRouter(st store.Store, log zerolog.Logger, isHealthy func() bool) *mux.Router {
	root := mux.NewRouter()
	root.Use(api.Recover)

	svc := detector.NewService(st, clock.System{}, log)
	h := api.NewDetectorHandler(svc)

	root.HandleFunc("/api/detectors/lastUpdated", h.LastUpdated).Methods("GET")
	root.HandleFunc("/api/detectors/lastUsed", h.LastUsed).Methods("GET")
	root.HandleFunc("/api/detectors/toBeTrained", h.ToBeTrained).Methods("GET")

	root.HandleFunc("/api/detectors", h.CreateDetector).Methods("POST")
	root.HandleFunc("/api/detectors", h.ListByCreatedBy).Methods("GET")
	root.HandleFunc("/api/detectors/{uuid}", h.GetDetector).Methods("GET")
	root.HandleFunc("/api/detectors/{uuid}", h.UpdateDetector).Methods("PUT")
	root.HandleFunc("/api/detectors/{uuid}", h.DeleteDetector).Methods("DELETE")
	root.HandleFunc("/api/detectors/{uuid}/enabled", h.ToggleDetector).Methods("POST")
	root.HandleFunc("/api/detectors/{uuid}/trusted", h.TrustDetector).Methods("POST")
	root.HandleFunc("/api/detectors/{uuid}/lastUsed", h.TouchDetector).Methods("POST")
	root.HandleFunc("/api/detectors/{uuid}/trainingTime", h.UpdateTrainingTime).Methods("POST")

	root.HandleFunc("/api/detectorMappings/validate", h.ValidateMapping).Methods("POST")

	healthHandler := api.NewHealthHandler(isHealthy)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return root
}

// startHealthCheckers starts the store checker and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in
// seconds: interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	// Checkers start unhealthy and need time to complete their first probe.
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
