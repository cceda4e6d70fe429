package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-rpc-api/config"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
)

// MulticallRoute is the route the orchestrator registers itself under.
const MulticallRoute = "/multicall"

// Entry is one sub-call of a batch.
type Entry struct {
	Method   string         `json:"method"`
	Params   map[string]any `json:"params,omitempty"`
	Breaking bool           `json:"breaking,omitempty"`
}

// OrchestratorOptions groups dependencies for Orchestrator.
type OrchestratorOptions struct {
	// Registry resolves sub-call routes. Pass the registry without the multicall
	// route itself so batches cannot nest.
	Registry      *rpc.Registry
	Pipeline      *Pipeline
	UnknownPolicy config.UnknownRoutePolicy
	MaxCalls      int
	Logger        *slog.Logger
}

// Orchestrator runs batches of sub-calls in order, threading session changes through.
type Orchestrator struct {
	registry *rpc.Registry
	pipeline *Pipeline
	unknown  config.UnknownRoutePolicy
	maxCalls int
	logger   *slog.Logger
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Registry == nil {
		return nil, errors.New("Registry is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("Pipeline is required")
	}
	cfg := config.RPCConfig{MulticallUnknownPolicy: opts.UnknownPolicy, MulticallMaxCalls: opts.MaxCalls}
	if cfg.MulticallMaxCalls == 0 {
		cfg.MulticallMaxCalls = 100
	}
	cfg.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		registry: opts.Registry,
		pipeline: opts.Pipeline,
		unknown:  cfg.MulticallUnknownPolicy,
		maxCalls: cfg.MulticallMaxCalls,
		logger:   logger.With("component", "multicall"),
	}, nil
}

// Run executes entries in order starting from session and returns one response per
// executed entry. Entries naming unknown routes are answered with METHOD_UNKNOWN, or
// dropped under the skip policy. A failed breaking entry ends the batch.
func (o *Orchestrator) Run(
	ctx context.Context,
	entries []Entry,
	session *domainauth.Session,
	client domainauth.ClientBinding,
) []rpc.Response {
	out := make([]rpc.Response, 0, len(entries))
	working := session

	for i, e := range entries {
		resp, skipped := o.runEntry(ctx, i, e, working, client)
		if skipped {
			continue
		}
		if resp.Session != nil {
			working = resp.Session.Session
		}
		out = append(out, resp)
		if e.Breaking && !resp.Success {
			break
		}
	}
	return out
}

func (o *Orchestrator) runEntry(
	ctx context.Context,
	index int,
	e Entry,
	session *domainauth.Session,
	client domainauth.ClientBinding,
) (resp rpc.Response, skipped bool) {
	err := guard(func() error {
		d, ok := o.registry.Lookup(e.Method)
		if !ok {
			if o.unknown == config.UnknownRouteSkip {
				skipped = true
				return nil
			}
			resp = rpc.FailKind(rpc.KindMethodUnknown, fmt.Sprintf("Unknown method %q", e.Method))
			return nil
		}
		resp = o.pipeline.Execute(ctx, Request{
			Descriptor: d,
			Inputs:     e.Params,
			Session:    session,
			Client:     client,
			Multicall:  true,
		})
		return nil
	})
	if err != nil {
		attrs := []any{"index", index, "method", e.Method, "error", err}
		var pe *PanicError
		if errors.As(err, &pe) {
			attrs = append(attrs, "stack", string(pe.Stack))
		}
		o.logger.ErrorContext(ctx, "multicall entry fault", attrs...)
		return rpc.FailKind(rpc.KindMulticallError, "Batched call failed unexpectedly"), false
	}
	return resp, skipped
}

// Descriptor exposes the orchestrator as a non-transactional method open to any caller.
// Its single parameter "calls" is a JSON array of entries.
func (o *Orchestrator) Descriptor() rpc.Descriptor {
	return rpc.Descriptor{
		Route:   MulticallRoute,
		Params:  []param.Spec{{Key: "calls", Type: param.TypeJSON}},
		Handler: rpc.HandlerFunc(o.invoke),
	}
}

func (o *Orchestrator) invoke(ctx context.Context, call rpc.Call) (rpc.Response, error) {
	entries, err := ParseEntries(call.Params.JSON("calls"))
	if err != nil {
		return rpc.FailKind(rpc.KindParamType, err.Error()), nil
	}
	if len(entries) > o.maxCalls {
		return rpc.FailKind(rpc.KindParamRange,
			fmt.Sprintf("parameter \"calls\" holds %d entries, at most %d allowed", len(entries), o.maxCalls)), nil
	}
	return rpc.OK(o.Run(ctx, entries, call.Session, call.Client)), nil
}

// ParseEntries converts a decoded JSON array into batch entries.
func ParseEntries(doc any) ([]Entry, error) {
	list, ok := doc.([]any)
	if !ok {
		return nil, errors.New("parameter \"calls\" must be a JSON array")
	}
	out := make([]Entry, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("calls[%d] must be an object", i)
		}
		method, _ := obj["method"].(string)
		if strings.TrimSpace(method) == "" {
			return nil, fmt.Errorf("calls[%d].method must be a non-empty string", i)
		}
		e := Entry{Method: method}
		switch params := obj["params"].(type) {
		case nil:
		case map[string]any:
			e.Params = params
		default:
			return nil, fmt.Errorf("calls[%d].params must be an object", i)
		}
		switch b := obj["breaking"].(type) {
		case nil:
		case bool:
			e.Breaking = b
		default:
			return nil, fmt.Errorf("calls[%d].breaking must be a boolean", i)
		}
		out = append(out, e)
	}
	return out, nil
}
