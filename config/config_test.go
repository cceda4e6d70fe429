package config

import (
	"reflect"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "single service - reaper",
			input:    "reaper",
			expected: map[ServiceMode]bool{ServiceModeReaper: true},
		},
		{
			name:     "services with spaces and duplicates",
			input:    " http , reaper , http ",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true, ServiceModeReaper: true},
		},
		{name: "empty string", input: "", expectError: true},
		{name: "only commas", input: " , ,", expectError: true},
		{name: "invalid service", input: "http,scheduler", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseServices(tt.input)
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error for input %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	tests := []struct {
		services     string
		expectHTTP   bool
		expectReaper bool
	}{
		{services: "http", expectHTTP: true},
		{services: "reaper", expectReaper: true},
		{services: "http,reaper", expectHTTP: true, expectReaper: true},
		{services: "bogus"},
	}

	for _, tt := range tests {
		t.Run(tt.services, func(t *testing.T) {
			cfg := AppConfig{Services: tt.services}
			if cfg.IsHTTPServerEnabled() != tt.expectHTTP {
				t.Errorf("IsHTTPServerEnabled(): expected %v", tt.expectHTTP)
			}
			if cfg.IsReaperEnabled() != tt.expectReaper {
				t.Errorf("IsReaperEnabled(): expected %v", tt.expectReaper)
			}
		})
	}
}

func TestAppConfig_ParseEnvDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Services != "http,reaper" {
		t.Errorf("Services = %q", cfg.Services)
	}
	if cfg.Session.TTL != time.Hour || cfg.Session.PreAuthTTL != time.Hour {
		t.Errorf("unexpected session lifetimes %+v", cfg.Session)
	}
	if cfg.RPC.MulticallUnknownPolicy != UnknownRouteReport {
		t.Errorf("MulticallUnknownPolicy = %q", cfg.RPC.MulticallUnknownPolicy)
	}
	if cfg.Postgres.Port != 5432 || cfg.Postgres.Name != "rpc" {
		t.Errorf("unexpected postgres config %+v", cfg.Postgres)
	}
	if len(cfg.HTTP.CORSAllowedOrigins) != 0 {
		t.Errorf("CORS should be disabled by default, got %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.DevSeed.Enabled {
		t.Error("dev seed must stay off outside dev mode")
	}
}

func TestAppConfig_ParseEnvOverrides(t *testing.T) {
	t.Setenv("DEV", "true")
	t.Setenv("DEV_SEED_ENABLED", "true")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("REDIS_URI", "rediss://cache.internal:6380/2")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("HTTP_PATH_PREFIX", "rpc/")
	t.Setenv("HTTP_CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MULTICALL_UNKNOWN_POLICY", " SKIP ")
	t.Setenv("SESSION_TTL", "30m")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("DB host = %q", cfg.Postgres.Host)
	}
	if cfg.Redis.URI != "rediss://cache.internal:6380/2" || cfg.Redis.DB != 3 {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
	if cfg.HTTP.PathPrefix != "/rpc" {
		t.Errorf("PathPrefix = %q", cfg.HTTP.PathPrefix)
	}
	if !reflect.DeepEqual(cfg.HTTP.CORSAllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("CORSAllowedOrigins = %v", cfg.HTTP.CORSAllowedOrigins)
	}
	if cfg.RPC.MulticallUnknownPolicy != UnknownRouteSkip {
		t.Errorf("MulticallUnknownPolicy = %q", cfg.RPC.MulticallUnknownPolicy)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL)
	}
	if !cfg.IsDev || !cfg.DevSeed.Enabled {
		t.Error("dev seed should stay enabled in dev mode")
	}
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{Interval: time.Second, BatchSize: 0}
	cfg.Sanitize()
	if cfg.Interval != 10*time.Second || cfg.BatchSize != 1 {
		t.Errorf("unexpected sanitized config %+v", cfg)
	}

	cfg = ReaperConfig{Interval: time.Hour, BatchSize: 50000}
	cfg.Sanitize()
	if cfg.Interval != time.Hour || cfg.BatchSize != 10000 {
		t.Errorf("unexpected sanitized config %+v", cfg)
	}
}

func TestObservabilityMetricsConfig_Sanitize(t *testing.T) {
	cfg := ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " "}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Fatalf("expected enabled to be false when address is empty")
	}
	if cfg.Prefix != "rpc" {
		t.Fatalf("expected default prefix, got %q", cfg.Prefix)
	}

	cfg = ObservabilityMetricsConfig{Enabled: true, StatsdAddress: " statsd:1234 ", Prefix: ".svc."}
	cfg.Sanitize()
	if !cfg.IsEnabled() {
		t.Fatalf("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:1234" || cfg.Prefix != "svc" {
		t.Fatalf("unexpected sanitized config %+v", cfg)
	}

	p := PrometheusConfig{Path: "metrics"}
	p.Sanitize()
	if p.Path != "/metrics" {
		t.Fatalf("expected leading slash, got %q", p.Path)
	}
}

func TestRPCConfig_Sanitize(t *testing.T) {
	cfg := RPCConfig{MulticallUnknownPolicy: "weird", MulticallMaxCalls: 0}
	cfg.Sanitize()
	if cfg.MulticallUnknownPolicy != UnknownRouteReport || cfg.MulticallMaxCalls != 1 {
		t.Errorf("unexpected sanitized config %+v", cfg)
	}
}
