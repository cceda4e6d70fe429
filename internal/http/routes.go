// Package httpx exposes the dispatcher over HTTP.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/mmk-rpc-api/config"
)

// RouterOptions holds everything the HTTP router needs.
type RouterOptions struct {
	Dispatcher Dispatcher // Required
	HTTP       config.HTTPConfig
	// Health checks reported by /healthz, keyed by dependency name.
	Health map[string]HealthCheck
	// Metrics serves the Prometheus scrape endpoint at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	Logger      *slog.Logger
}

// NewRouter registers one route per dispatcher method (GET and POST) under the path
// prefix, plus /healthz and the metrics endpoint, and wraps the mux in the middleware chain:
// Recover, Logging, CORS, RateLimit, Compression.
func NewRouter(opts RouterOptions) (http.Handler, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.HTTP

	rpcHandler, err := NewRPCHandler(RPCHandlerOptions{
		Dispatcher:        opts.Dispatcher,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	prefix := cfg.PathPrefix
	for _, route := range opts.Dispatcher.Routes() {
		h := rpcHandler.Route(route)
		mux.Handle("GET "+prefix+route, h)
		mux.Handle("POST "+prefix+route, h)
	}
	mux.Handle(prefix+"/", rpcHandler.Fallback(prefix))

	health := healthHandler(opts.Health, logger)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, opts.Metrics)
	}

	var h http.Handler = mux
	if cfg.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.CompressionLevel)
		h = Compression(CompressionConfig{Level: cfg.CompressionLevel, Logger: logger})(h)
	}
	h = RateLimit(RateLimitConfig{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
		KeyFunc: func(r *http.Request) string {
			return remoteIP(r, cfg.TrustProxyHeaders)
		},
	})(h)
	if len(cfg.CORSAllowedOrigins) > 0 {
		h = CORS(cfg.CORSAllowedOrigins)(h)
	}
	h = Logging(logger)(h)
	h = Recover(logger)(h)
	return h, nil
}
