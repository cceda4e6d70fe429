// Package metrics records dispatch outcomes to StatsD and Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	obserrors "github.com/target/mmk-rpc-api/internal/observability/errors"
	"github.com/target/mmk-rpc-api/internal/observability/statsd"
)

// Outcome labels for calls that did not fail with an error kind.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CallMetric describes one executed method call.
type CallMetric struct {
	Route string
	// Outcome is OutcomeSuccess, OutcomeFailure, or the failure's error kind.
	Outcome   string
	Duration  time.Duration
	Multicall bool
	// Err is the unexpected fault behind METHOD_ERROR / HANDLER_ERROR outcomes, if any.
	Err error
}

// ReapMetric describes one reaper pass over a table.
type ReapMetric struct {
	Target  string
	Deleted int64
	Err     error
}

// Recorder receives dispatch and background-work measurements.
type Recorder interface {
	ObserveCall(m CallMetric)
	ObserveReap(m ReapMetric)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) ObserveCall(CallMetric) {}
func (Nop) ObserveReap(ReapMetric) {}

// Multi fans measurements out to several recorders. Nil entries are skipped.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multi []Recorder

func (m multi) ObserveCall(c CallMetric) {
	for _, r := range m {
		r.ObserveCall(c)
	}
}

func (m multi) ObserveReap(c ReapMetric) {
	for _, r := range m {
		r.ObserveReap(c)
	}
}

// StatsdRecorder emits measurements through a statsd.Sink.
type StatsdRecorder struct {
	Sink statsd.Sink
}

// ObserveCall emits rpc.call (count) and rpc.call.duration (timing).
func (s StatsdRecorder) ObserveCall(m CallMetric) {
	if s.Sink == nil {
		return
	}
	tags := map[string]string{
		"route":     m.Route,
		"outcome":   m.Outcome,
		"multicall": boolTag(m.Multicall),
	}
	if class := obserrors.Classify(m.Err); class != "" {
		tags["error_class"] = class
	}
	s.Sink.Count("rpc.call", 1, tags)
	if m.Duration > 0 {
		s.Sink.Timing("rpc.call.duration", m.Duration, map[string]string{"route": m.Route})
	}
}

// ObserveReap emits reaper.deleted and, on failure, reaper.error.
func (s StatsdRecorder) ObserveReap(m ReapMetric) {
	if s.Sink == nil {
		return
	}
	tags := map[string]string{"target": m.Target}
	s.Sink.Count("reaper.deleted", m.Deleted, tags)
	if m.Err != nil {
		errTags := map[string]string{"target": m.Target, "error_class": obserrors.Classify(m.Err)}
		s.Sink.Count("reaper.error", 1, errTags)
	}
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// PrometheusRecorder keeps dispatch counters and histograms for scraping.
type PrometheusRecorder struct {
	calls      *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	reaped     *prometheus.CounterVec
	reapErrors *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	p := &PrometheusRecorder{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Name:      "calls_total",
			Help:      "Method calls by route and outcome.",
		}, []string{"route", "outcome", "multicall"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Method call latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		reaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Name:      "reaper_deleted_total",
			Help:      "Expired rows removed by the reaper.",
		}, []string{"target"}),
		reapErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Name:      "reaper_errors_total",
			Help:      "Failed reaper passes.",
		}, []string{"target"}),
	}
	for _, c := range []prometheus.Collector{p.calls, p.durations, p.reaped, p.reapErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveCall increments rpc_calls_total and observes rpc_call_duration_seconds.
func (p *PrometheusRecorder) ObserveCall(m CallMetric) {
	p.calls.WithLabelValues(m.Route, m.Outcome, boolTag(m.Multicall)).Inc()
	p.durations.WithLabelValues(m.Route).Observe(m.Duration.Seconds())
}

// ObserveReap adds to rpc_reaper_deleted_total and rpc_reaper_errors_total.
func (p *PrometheusRecorder) ObserveReap(m ReapMetric) {
	p.reaped.WithLabelValues(m.Target).Add(float64(m.Deleted))
	if m.Err != nil {
		p.reapErrors.WithLabelValues(m.Target).Inc()
	}
}
