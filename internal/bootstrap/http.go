package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-rpc-api/config"
	httpx "github.com/target/mmk-rpc-api/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB // Optional: adds a postgres health check
	Logger   *slog.Logger
}

// NewHTTPServer builds the HTTP server serving the dispatcher, /healthz and /metrics.
func NewHTTPServer(cfg *HTTPServerConfig) (*http.Server, error) {
	if cfg == nil || cfg.Services.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	health := map[string]httpx.HealthCheck{}
	if cfg.DB != nil {
		health["postgres"] = cfg.DB.PingContext
	}
	if cfg.Services.Cache != nil {
		health["redis"] = cfg.Services.Cache.Health
	}

	handler, err := httpx.NewRouter(httpx.RouterOptions{
		Dispatcher:  cfg.Services.Dispatcher,
		HTTP:        appCfg.HTTP,
		Health:      health,
		Metrics:     cfg.Services.Observability.MetricsHandler,
		MetricsPath: appCfg.Observability.Prometheus.Path,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	addr := appCfg.HTTP.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       appCfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      appCfg.HTTP.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}, nil
}

// ServeHTTP runs srv until ctx is done, then shuts it down within timeout.
func ServeHTTP(ctx context.Context, srv *http.Server, timeout time.Duration, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// The parent context is already canceled; shutdown gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return <-errCh
}
