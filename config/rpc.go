package config

import (
	"strings"
	"time"
)

// SessionConfig controls session and pre-auth token lifetimes.
type SessionConfig struct {
	// TTL is how far each authenticated call pushes a session's expiry.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"1h"`

	// PreAuthTTL is the lifetime of a login challenge token.
	PreAuthTTL time.Duration `env:"SESSION_PREAUTH_TTL" envDefault:"1h"`
}

// Sanitize applies guardrails to session lifetimes.
func (s *SessionConfig) Sanitize() {
	if s.TTL < time.Minute {
		s.TTL = time.Minute
	}
	if s.PreAuthTTL < time.Minute {
		s.PreAuthTTL = time.Minute
	}
}

// UnknownRoutePolicy decides what a multicall does with entries naming unregistered routes.
type UnknownRoutePolicy string

const (
	// UnknownRouteReport answers METHOD_UNKNOWN in the entry's slot.
	UnknownRouteReport UnknownRoutePolicy = "report"
	// UnknownRouteSkip drops the entry from the result list.
	UnknownRouteSkip UnknownRoutePolicy = "skip"
)

// RPCConfig controls the dispatcher and multicall orchestrator.
type RPCConfig struct {
	MulticallUnknownPolicy UnknownRoutePolicy `env:"MULTICALL_UNKNOWN_POLICY" envDefault:"report"`

	// MulticallMaxCalls bounds the number of entries in one batch.
	MulticallMaxCalls int `env:"MULTICALL_MAX_CALLS" envDefault:"100"`
}

// Sanitize applies guardrails to dispatcher configuration.
func (r *RPCConfig) Sanitize() {
	switch p := UnknownRoutePolicy(strings.ToLower(strings.TrimSpace(string(r.MulticallUnknownPolicy)))); p {
	case UnknownRouteSkip:
		r.MulticallUnknownPolicy = p
	default:
		r.MulticallUnknownPolicy = UnknownRouteReport
	}
	if r.MulticallMaxCalls < 1 {
		r.MulticallMaxCalls = 1
	}
	if r.MulticallMaxCalls > 1000 {
		r.MulticallMaxCalls = 1000
	}
}

// DevSeedConfig points at a YAML fixture loaded on startup in development mode.
type DevSeedConfig struct {
	Enabled bool   `env:"DEV_SEED_ENABLED" envDefault:"false"`
	File    string `env:"DEV_SEED_FILE"    envDefault:"devseed.yaml"`
}
