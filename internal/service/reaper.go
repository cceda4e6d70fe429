package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-rpc-api/config"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	"github.com/target/mmk-rpc-api/internal/observability/metrics"
)

// Reaper targets, used as metric labels.
const (
	ReapTargetSessions = "sessions"
	ReapTargetTokens   = "preauth_tokens"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository // Required
	Config  config.ReaperConfig
	Clock   data.TimeProvider // Optional: defaults to the wall clock
	Logger  *slog.Logger      // Optional
	Metrics metrics.Recorder  // Optional
}

// ReaperService periodically deletes expired sessions and pre-auth tokens.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	clock   data.TimeProvider
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}
	cfg := opts.Config
	cfg.Sanitize()

	s := &ReaperService{
		repo:    opts.Repo,
		config:  cfg,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
	if s.clock == nil {
		s.clock = &data.RealTimeProvider{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	s.logger = s.logger.With("component", "reaper_service")
	s.logger.Debug("ReaperService initialized", "interval", cfg.Interval, "batch_size", cfg.BatchSize)
	return s, nil
}

// Run performs a pass after a short jitter and then on every interval until ctx ends.
// A canceled context is a graceful shutdown and yields nil.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps up to a tenth of the interval so that replicas started together
// do not reap in lockstep.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type reapFunc func(context.Context, core.DeleteExpiredParams) (int64, error)

// RunOnce performs one cleanup pass over every target.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	steps := []struct {
		target string
		fn     reapFunc
	}{
		{ReapTargetSessions, s.repo.DeleteExpiredSessions},
		{ReapTargetTokens, s.repo.DeleteExpiredPreAuthTokens},
	}

	var errs []error
	for _, step := range steps {
		n, err := s.drain(ctx, step.fn)
		s.metrics.ObserveReap(metrics.ReapMetric{Target: step.target, Deleted: n, Err: suppressContextCancellation(err)})
		if n > 0 {
			s.logger.InfoContext(ctx, "deleted expired rows", "target", step.target, "count", n)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reap %s: %w", step.target, err))
		}
	}
	return errors.Join(errs...)
}

// drain deletes batches until one comes back empty.
func (s *ReaperService) drain(ctx context.Context, fn reapFunc) (int64, error) {
	params := core.DeleteExpiredParams{Now: s.clock.Now(), BatchSize: s.config.BatchSize}
	var total int64
	for {
		n, err := fn(ctx, params)
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error, label string) {
	if isContextCancellation(err) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
