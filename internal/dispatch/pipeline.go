// Package dispatch runs registered methods: parameter validation, authorization,
// transaction scoping and fault isolation for single calls and multicall batches.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/target/mmk-rpc-api/internal/core"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
	"github.com/target/mmk-rpc-api/internal/domain/rpc"
	"github.com/target/mmk-rpc-api/internal/observability/metrics"
)

// Authorizer answers whether a user holds a set of permissions.
type Authorizer interface {
	HasPermissions(ctx context.Context, userID string, required []string) (bool, error)
}

// Request is one method invocation.
type Request struct {
	Descriptor rpc.Descriptor
	Inputs     map[string]any
	Session    *domainauth.Session
	Client     domainauth.ClientBinding
	// Multicall marks sub-calls of a batch, for metrics.
	Multicall bool
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

type stage string

const (
	stageParams  stage = "parameter_check"
	stageAuthz   stage = "authorization_check"
	stageBegin   stage = "transaction_begin"
	stageHandler stage = "handler_run"
	stageCommit  stage = "commit"
)

// Messages of generic fault responses. Details only go to the log.
const (
	msgHandlerError = "The request could not be processed"
	msgMethodError  = "An unexpected error occurred"
)

var errNoTransactor = errors.New("transactional method without a transactor")

// PipelineOptions groups dependencies for Pipeline.
type PipelineOptions struct {
	Authorizer Authorizer       // Required
	Tx         core.Transactor  // Required for transactional methods
	Metrics    metrics.Recorder // Optional
	Logger     *slog.Logger     // Optional
}

// Pipeline executes a single method call. It holds no per-call state and is safe for
// concurrent use.
type Pipeline struct {
	authz   Authorizer
	tx      core.Transactor
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewPipeline constructs a Pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Authorizer == nil {
		return nil, errors.New("Authorizer is required")
	}
	p := &Pipeline{
		authz:   opts.Authorizer,
		tx:      opts.Tx,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if p.metrics == nil {
		p.metrics = metrics.Nop{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Execute runs req through every stage and returns the normalized response.
// It never panics and never returns a transaction left open.
func (p *Pipeline) Execute(ctx context.Context, req Request) rpc.Response {
	start := time.Now()
	resp, fault := p.execute(ctx, req)
	p.metrics.ObserveCall(metrics.CallMetric{
		Route:     req.Descriptor.Route,
		Outcome:   outcomeOf(resp),
		Duration:  time.Since(start),
		Multicall: req.Multicall,
		Err:       fault,
	})
	return resp.Normalize()
}

func (p *Pipeline) execute(ctx context.Context, req Request) (rpc.Response, error) {
	d := req.Descriptor

	var (
		values   param.Values
		rejected *param.Result
	)
	if err := guard(func() error {
		values, rejected = param.ValidateAll(d.Params, req.Inputs)
		return nil
	}); err != nil {
		return p.fault(ctx, d, stageParams, err)
	}
	if rejected != nil {
		return rpc.FailKind(rpc.ErrorKind(rejected.Kind), rejected.Reason), nil
	}

	var denied *rpc.Response
	if err := guard(func() error {
		var err error
		denied, err = p.authorize(ctx, d, req.Session)
		return err
	}); err != nil {
		return p.fault(ctx, d, stageAuthz, err)
	}
	if denied != nil {
		return *denied, nil
	}

	call := rpc.Call{Route: d.Route, Params: values, Session: req.Session, Client: req.Client}
	if !d.Transactional {
		resp, err := invoke(ctx, d.Handler, call)
		if err != nil {
			return p.fault(ctx, d, stageHandler, err)
		}
		return resp, nil
	}
	return p.invokeInTx(ctx, d, call)
}

// authorize returns a failure response when the caller may not run d.
// Declaring permissions implies a session.
func (p *Pipeline) authorize(ctx context.Context, d rpc.Descriptor, sess *domainauth.Session) (*rpc.Response, error) {
	if sess == nil {
		if d.RequiresSession || len(d.Permissions) > 0 {
			resp := rpc.FailKind(rpc.KindPermissionNoSession, "This method requires a session")
			return &resp, nil
		}
		return nil, nil
	}
	if d.RequiresNoSession {
		resp := rpc.FailKind(rpc.KindPermissionSession, "This method cannot be called with a session")
		return &resp, nil
	}
	if len(d.Permissions) == 0 {
		return nil, nil
	}
	ok, err := p.authz.HasPermissions(ctx, sess.UserID, d.Permissions)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions: %w", err)
	}
	if !ok {
		resp := rpc.FailKind(rpc.KindPermissionMissing, "Missing permission for this method")
		return &resp, nil
	}
	return nil, nil
}

// invokeInTx commits iff the handler reports success.
func (p *Pipeline) invokeInTx(ctx context.Context, d rpc.Descriptor, call rpc.Call) (rpc.Response, error) {
	if p.tx == nil {
		return p.fault(ctx, d, stageBegin, errNoTransactor)
	}
	txCtx, tx, err := p.tx.Begin(ctx)
	if err != nil {
		return p.fault(ctx, d, stageBegin, err)
	}

	resp, err := invoke(txCtx, d.Handler, call)
	if err != nil || !resp.Success {
		if rbErr := tx.Rollback(); rbErr != nil {
			p.logger.ErrorContext(ctx, "rollback failed", "route", d.Route, "error", rbErr)
		}
		if err != nil {
			return p.fault(ctx, d, stageHandler, err)
		}
		return resp, nil
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return p.fault(ctx, d, stageCommit, err)
	}
	return resp, nil
}

// fault logs an unexpected failure and converts it to the generic response for its stage.
func (p *Pipeline) fault(ctx context.Context, d rpc.Descriptor, st stage, err error) (rpc.Response, error) {
	attrs := []any{"route", d.Route, "stage", string(st), "error", err}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, "stack", string(pe.Stack))
	}
	p.logger.ErrorContext(ctx, "method fault", attrs...)

	switch st {
	case stageParams, stageAuthz, stageBegin:
		return rpc.FailKind(rpc.KindHandlerError, msgHandlerError), err
	default:
		return rpc.FailKind(rpc.KindMethodError, msgMethodError), err
	}
}

func invoke(ctx context.Context, h rpc.Invocable, call rpc.Call) (resp rpc.Response, err error) {
	err = guard(func() error {
		var invokeErr error
		resp, invokeErr = h.Invoke(ctx, call)
		return invokeErr
	})
	return resp, err
}

// guard runs fn, converting a panic into *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func outcomeOf(resp rpc.Response) string {
	switch {
	case resp.Success:
		return metrics.OutcomeSuccess
	case resp.Code != "":
		return string(resp.Code)
	default:
		return metrics.OutcomeFailure
	}
}
