package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-rpc-api/config"
	"github.com/target/mmk-rpc-api/internal/adapters/reaper"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	"github.com/target/mmk-rpc-api/internal/dispatch"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
	"github.com/target/mmk-rpc-api/internal/modules"
	"github.com/target/mmk-rpc-api/internal/observability/metrics"
	"github.com/target/mmk-rpc-api/internal/observability/statsd"
	"github.com/target/mmk-rpc-api/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions      *service.SessionService
	Permissions   *service.PermissionService
	Users         *service.UserService
	Dispatcher    *dispatch.Dispatcher
	Cache         core.CacheRepository // nil when the hierarchy cache is disabled
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Recorder    metrics.Recorder
	MetricsSink *statsd.Client // nil unless StatsD is enabled
	// Prometheus scrape handler; nil when the endpoint is disabled.
	MetricsHandler http.Handler
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional: enables the hierarchy cache
	Logger      *slog.Logger
	// Registerer receives the Prometheus collectors. Defaults to a fresh registry.
	Registerer prometheus.Registerer
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Users       *data.UserRepo
	Sessions    *data.SessionRepo
	Tokens      *data.PreAuthTokenRepo
	Permissions *data.PermissionRepo
	Cache       *data.RedisCacheRepo
	Tx          *data.Transactor
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, client redis.UniversalClient, cacheCfg config.CacheConfig) *serviceRepositories {
	repos := &serviceRepositories{
		Users:       data.NewUserRepo(db),
		Sessions:    data.NewSessionRepo(db),
		Tokens:      data.NewPreAuthTokenRepo(db),
		Permissions: data.NewPermissionRepo(db),
		Tx:          data.NewTransactor(db),
	}
	if client != nil && cacheCfg.Enabled {
		repos.Cache = data.NewRedisCacheRepo(client, cacheCfg.KeyPrefix)
	}
	return repos
}

// buildObservability configures the StatsD sink and the Prometheus collectors.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig, reg prometheus.Registerer) (ObservabilityContainer, error) {
	var out ObservabilityContainer
	recorders := make([]metrics.Recorder, 0, 2)

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.MetricsSink = client
			recorders = append(recorders, metrics.StatsdRecorder{Sink: client})
		}
	}

	if cfg.Prometheus.Enabled {
		if reg == nil {
			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			reg = registry
		}
		prom, err := metrics.NewPrometheusRecorder(reg)
		if err != nil {
			return out, fmt.Errorf("register prometheus collectors: %w", err)
		}
		recorders = append(recorders, prom)
		if gatherer, ok := reg.(prometheus.Gatherer); ok {
			out.MetricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
		}
	}

	out.Recorder = metrics.Multi(recorders...)
	return out, nil
}

// Modules lists the business modules served by the dispatcher.
func Modules(c ServiceContainer) []rpc.Module {
	return []rpc.Module{
		modules.Session(c.Sessions),
		modules.Permissions(c.Permissions),
		modules.Users(c.Users),
		modules.System(&data.RealTimeProvider{}),
	}
}

// NewServices wires repositories, business services and the dispatcher.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.DB == nil {
		return ServiceContainer{}, errors.New("database connection is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := deps.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	observability, err := buildObservability(logger, appCfg.Observability, deps.Registerer)
	if err != nil {
		return ServiceContainer{}, err
	}
	repos := buildRepositories(deps.DB, deps.RedisClient, appCfg.Cache)

	c := ServiceContainer{Observability: observability}
	var hierarchy *core.HierarchyCache
	if repos.Cache != nil {
		c.Cache = repos.Cache
		hierarchy = core.NewHierarchyCache(repos.Cache, core.HierarchyCacheConfig{TTL: appCfg.Cache.HierarchyTTL})
	}

	if c.Permissions, err = service.NewPermissionService(service.PermissionServiceOptions{
		Repo:   repos.Permissions,
		Cache:  hierarchy,
		Logger: logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("wire permission service: %w", err)
	}
	if c.Sessions, err = service.NewSessionService(service.SessionServiceOptions{
		Users:    repos.Users,
		Sessions: repos.Sessions,
		Tokens:   repos.Tokens,
		Tx:       repos.Tx,
		Config:   appCfg.Session,
		Logger:   logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("wire session service: %w", err)
	}
	if c.Users, err = service.NewUserService(service.UserServiceOptions{
		Users:    repos.Users,
		Sessions: repos.Sessions,
		Logger:   logger,
	}); err != nil {
		return ServiceContainer{}, fmt.Errorf("wire user service: %w", err)
	}

	pipeline, err := dispatch.NewPipeline(dispatch.PipelineOptions{
		Authorizer: c.Permissions,
		Tx:         repos.Tx,
		Metrics:    observability.Recorder,
		Logger:     logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire pipeline: %w", err)
	}
	c.Dispatcher, err = dispatch.Build(Modules(c), pipeline, c.Sessions, dispatch.OrchestratorOptions{
		UnknownPolicy: appCfg.RPC.MulticallUnknownPolicy,
		MaxCalls:      appCfg.RPC.MulticallMaxCalls,
	}, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("wire dispatcher: %w", err)
	}
	return c, nil
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// backgroundService describes a startable component.
type backgroundService struct {
	mode config.ServiceMode
	name string
	run  func(context.Context) error
}

func buildBackgroundServices(cfg *ServiceOrchestrationConfig, logger *slog.Logger) ([]backgroundService, error) {
	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return nil, fmt.Errorf("determine enabled services: %w", err)
	}

	var out []backgroundService
	if enabled[config.ServiceModeHTTP] {
		srv, err := NewHTTPServer(&HTTPServerConfig{
			Config:   cfg.Config,
			Services: cfg.Services,
			DB:       cfg.DB,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, backgroundService{
			mode: config.ServiceModeHTTP,
			name: "http server",
			run: func(ctx context.Context) error {
				return ServeHTTP(ctx, srv, cfg.Config.HTTP.ShutdownTimeout, logger)
			},
		})
	}
	if enabled[config.ServiceModeReaper] {
		runner, err := reaper.NewRunner(reaper.RunnerOptions{
			DB:      cfg.DB,
			Config:  cfg.Config.Reaper,
			Logger:  logger,
			Metrics: cfg.Services.Observability.Recorder,
		})
		if err != nil {
			return nil, fmt.Errorf("create reaper runner: %w", err)
		}
		out = append(out, backgroundService{
			mode: config.ServiceModeReaper,
			name: "reaper",
			run:  runner.Run,
		})
	}
	return out, nil
}

// runServices runs every service until ctx is done or one of them fails, then waits
// for the rest to stop.
func runServices(ctx context.Context, services []backgroundService, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range services {
		g.Go(func() error {
			logger.InfoContext(gctx, "service started", "service", svc.name, "mode", svc.mode)
			err := svc.run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s failed: %w", svc.name, err)
			}
			logger.InfoContext(gctx, svc.name+" stopped")
			return nil
		})
	}
	return g.Wait()
}

// RunServicesWithShutdown starts all enabled services and blocks until SIGINT/SIGTERM
// or a service failure.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	services, err := buildBackgroundServices(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = runServices(ctx, services, logger)
	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		if cerr := sink.Close(); cerr != nil {
			logger.Warn("close statsd client failed", "error", cerr)
		}
	}
	return err
}
