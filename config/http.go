package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// PathPrefix is prepended to every method route (e.g. "/rpc" serves "/rpc/session/login").
	PathPrefix string `env:"HTTP_PATH_PREFIX" envDefault:""`

	// TrustProxyHeaders makes the client binding use the first X-Forwarded-For address.
	// Enable only behind a proxy that overwrites the header.
	TrustProxyHeaders bool `env:"HTTP_TRUST_PROXY_HEADERS" envDefault:"false"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	// CompressionEnabled enables gzip compression of responses.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip compression level (1-9).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`

	// CORSAllowedOrigins enables CORS for the listed origins. Empty disables CORS.
	CORSAllowedOrigins []string `env:"HTTP_CORS_ALLOWED_ORIGINS" envDefault:""`

	// RateLimitRPS is the sustained per-client request rate. Zero disables rate limiting.
	RateLimitRPS   float64 `env:"HTTP_RATE_LIMIT_RPS"   envDefault:"0"`
	RateLimitBurst int     `env:"HTTP_RATE_LIMIT_BURST" envDefault:"20"`

	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	// Clamp compression level to valid gzip range (1-9)
	if h.CompressionLevel < 1 {
		h.CompressionLevel = 1
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}

	h.PathPrefix = strings.TrimRight(strings.TrimSpace(h.PathPrefix), "/")
	if h.PathPrefix != "" && !strings.HasPrefix(h.PathPrefix, "/") {
		h.PathPrefix = "/" + h.PathPrefix
	}

	if h.MaxBodyBytes <= 0 {
		h.MaxBodyBytes = 1 << 20
	}
	if h.RateLimitRPS < 0 {
		h.RateLimitRPS = 0
	}
	if h.RateLimitBurst < 1 {
		h.RateLimitBurst = 1
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 10 * time.Second
	}

	origins := h.CORSAllowedOrigins[:0]
	for _, o := range h.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	h.CORSAllowedOrigins = origins
}
