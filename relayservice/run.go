package relayservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vaultwire/vaultwire/internal/api"
	"github.com/vaultwire/vaultwire/internal/config"
	"github.com/vaultwire/vaultwire/internal/factory"
	"github.com/vaultwire/vaultwire/internal/health"
	"github.com/vaultwire/vaultwire/internal/hub"
	"github.com/vaultwire/vaultwire/internal/logger"
	"github.com/vaultwire/vaultwire/internal/store"
	"github.com/vaultwire/vaultwire/internal/ws"
)

const (
	healthProbeTimeout  = 2 * time.Second
	healthCheckInterval = 30 * time.Second
)

// Run starts the relay HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("vaultwire")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Store adapter unavailable")
		return err
	}

	router, sweeper := buildRelay(st, cfg, log)

	// Retention sweep runs for the life of the process.
	go sweeper.Run(ctx)

	startHealthCheckers(ctx, log, st)

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
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

// buildRelay wires the hub components and HTTP routes over the store.
func buildRelay(st store.Store, cfg *config.Config, log zerolog.Logger) (http.Handler, *hub.Sweeper) {
	registry := hub.NewRegistry()
	membership := hub.NewMembership(st, log)
	delivery := hub.NewDelivery(st, registry, membership, log)
	eraser := hub.NewEraser(st, registry, membership, log)
	sweeper := hub.NewSweeper(st, hub.SweeperConfig{
		Retention: cfg.Retention(),
		Interval:  cfg.SweepInterval(),
	}, log)

	relay := ws.NewHandler(registry, membership, delivery, eraser, log)
	return api.NewRouter(st, registry, eraser, relay), sweeper
}

// startHealthCheckers starts the store checker and service-level aggregator.
func startHealthCheckers(ctx context.Context, log zerolog.Logger, st store.Store) {
	var checkers []health.HealthChecker
	if hp, ok := st.(health.HealthPinger); ok {
		storeChecker := health.NewPingChecker("store", hp, log, healthProbeTimeout)
		go storeChecker.Start(ctx, healthCheckInterval)
		checkers = append(checkers, storeChecker)
	}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, healthCheckInterval)
	api.BindServiceHealth(svcHealth.IsHealthy)
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
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

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
