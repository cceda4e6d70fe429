// Package reaper wires the expired session and token reaper onto a database handle.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-rpc-api/config"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	"github.com/target/mmk-rpc-api/internal/observability/metrics"
	"github.com/target/mmk-rpc-api/internal/service"
)

// Runner runs the reaper loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional overrides, mostly for tests.
	Repo    core.ReaperRepository
	Metrics metrics.Recorder
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	repo := opts.Repo
	if repo == nil {
		repo = &data.ReaperRepo{
			Sessions: data.NewSessionRepo(opts.DB),
			Tokens:   data.NewPreAuthTokenRepo(opts.DB),
		}
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{reaper: svc, logger: opts.Logger}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Repo == nil {
		return errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
