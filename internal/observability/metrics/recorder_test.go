package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type fakeSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (f *fakeSink) Count(name string, value int64, tags map[string]string) {
	f.add(recordedMetric{"count", name, float64(value), tags})
}

func (f *fakeSink) Gauge(name string, value float64, tags map[string]string) {
	f.add(recordedMetric{"gauge", name, value, tags})
}

func (f *fakeSink) Timing(name string, value time.Duration, tags map[string]string) {
	f.add(recordedMetric{"timing", name, float64(value), tags})
}

func (f *fakeSink) add(m recordedMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, m)
}

func TestStatsdRecorder_ObserveCall(t *testing.T) {
	sink := &fakeSink{}
	rec := StatsdRecorder{Sink: sink}

	rec.ObserveCall(CallMetric{Route: "/system/ping", Outcome: OutcomeSuccess, Duration: time.Millisecond})
	rec.ObserveCall(CallMetric{Route: "/x", Outcome: "METHOD_ERROR", Err: errors.New("boom"), Multicall: true})

	require.Len(t, sink.metrics, 3)
	assert.Equal(t, "rpc.call", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"route": "/system/ping", "outcome": "success", "multicall": "false"}, sink.metrics[0].tags)
	assert.Equal(t, "timing", sink.metrics[1].kind)
	assert.Equal(t, "errors_errorstring", sink.metrics[2].tags["error_class"])
	assert.Equal(t, "true", sink.metrics[2].tags["multicall"])
}

func TestStatsdRecorder_ObserveReap(t *testing.T) {
	sink := &fakeSink{}
	StatsdRecorder{Sink: sink}.ObserveReap(ReapMetric{Target: "sessions", Deleted: 4, Err: errors.New("x")})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "reaper.deleted", sink.metrics[0].name)
	assert.InDelta(t, 4, sink.metrics[0].value, 0)
	assert.Equal(t, "reaper.error", sink.metrics[1].name)

	// Nil sinks are tolerated.
	StatsdRecorder{}.ObserveReap(ReapMetric{Target: "sessions"})
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	rec.ObserveCall(CallMetric{Route: "/a", Outcome: OutcomeSuccess, Duration: 2 * time.Millisecond})
	rec.ObserveCall(CallMetric{Route: "/a", Outcome: OutcomeSuccess})
	rec.ObserveReap(ReapMetric{Target: "sessions", Deleted: 3})

	assert.InDelta(t, 2, testutil.ToFloat64(rec.calls.WithLabelValues("/a", "success", "false")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(rec.reaped.WithLabelValues("sessions")), 0)

	expected := `
# HELP rpc_reaper_errors_total Failed reaper passes.
# TYPE rpc_reaper_errors_total counter
rpc_reaper_errors_total{target="tokens"} 1
`
	rec.ObserveReap(ReapMetric{Target: "tokens", Err: errors.New("x")})
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rpc_reaper_errors_total"))

	_, err = NewPrometheusRecorder(reg)
	require.Error(t, err, "duplicate registration must fail")
}

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	rec := Multi(StatsdRecorder{Sink: a}, nil, StatsdRecorder{Sink: b}, Nop{})

	rec.ObserveCall(CallMetric{Route: "/a", Outcome: OutcomeFailure})
	assert.Len(t, a.metrics, 1)
	assert.Len(t, b.metrics, 1)
}
