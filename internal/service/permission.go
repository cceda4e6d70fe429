package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	apperrors "github.com/target/mmk-rpc-api/internal/errors"
)

// PermissionServiceOptions groups dependencies for PermissionService.
type PermissionServiceOptions struct {
	Repo   core.PermissionRepository // Required
	Cache  *core.HierarchyCache      // Optional: hierarchy snapshot cache
	Logger *slog.Logger              // Optional
}

// PermissionService resolves effective permissions over the permission hierarchy.
// Direct grants are always read from storage; only the hierarchy is cached.
type PermissionService struct {
	repo   core.PermissionRepository
	cache  *core.HierarchyCache
	logger *slog.Logger
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(opts PermissionServiceOptions) (*PermissionService, error) {
	if opts.Repo == nil {
		return nil, errors.New("PermissionRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionService{
		repo:   opts.Repo,
		cache:  opts.Cache,
		logger: logger.With("component", "permission_service"),
	}, nil
}

// EffectivePermissions returns the sorted union of the user's direct grants and
// everything below them. An empty userID yields no permissions.
func (s *PermissionService) EffectivePermissions(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return []string{}, nil
	}
	granted, err := s.repo.ListGranted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list granted permissions: %w", err)
	}
	if len(granted) == 0 {
		return []string{}, nil
	}
	graph, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Closure(granted...), nil
}

// Descendants returns every key strictly below key.
func (s *PermissionService) Descendants(ctx context.Context, key string) ([]string, error) {
	graph, err := s.graph(ctx)
	if err != nil {
		return nil, err
	}
	return graph.Descendants(key), nil
}

// HasPermissions reports whether the user holds every required key. Nothing required
// is always satisfied, even for an anonymous caller.
func (s *PermissionService) HasPermissions(ctx context.Context, userID string, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	if userID == "" {
		return false, nil
	}
	held, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return domainauth.Covers(held, required), nil
}

// Grant gives key to the user directly. It reports false when the grant already existed.
func (s *PermissionService) Grant(ctx context.Context, userID, key string) (bool, error) {
	created, err := s.repo.Grant(ctx, userID, strings.TrimSpace(key))
	if errors.Is(err, data.ErrUserNotFound) {
		return false, apperrors.NotFoundf("user %s not found", userID)
	}
	return created, err
}

// Revoke removes a direct grant. Keys implied through the hierarchy are unaffected.
func (s *PermissionService) Revoke(ctx context.Context, userID, key string) (bool, error) {
	return s.repo.Revoke(ctx, userID, strings.TrimSpace(key))
}

// Define creates or re-parents a permission and drops the cached hierarchy.
// Inside a transaction the cache is dropped only after the commit.
func (s *PermissionService) Define(ctx context.Context, p domainauth.Permission) error {
	p.Key = strings.TrimSpace(p.Key)
	p.Parent = strings.TrimSpace(p.Parent)
	if err := s.repo.Define(ctx, p); err != nil {
		return err
	}
	data.AfterCommit(ctx, s.invalidateHierarchy)
	return nil
}

func (s *PermissionService) invalidateHierarchy(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate hierarchy cache", "error", err)
	}
}

// List returns the whole hierarchy.
func (s *PermissionService) List(ctx context.Context) ([]domainauth.Permission, error) {
	return s.hierarchy(ctx)
}

func (s *PermissionService) graph(ctx context.Context) (*domainauth.PermissionGraph, error) {
	perms, err := s.hierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return domainauth.NewPermissionGraph(perms), nil
}

// hierarchy reads through the cache. Cache failures degrade to a storage read.
func (s *PermissionService) hierarchy(ctx context.Context) ([]domainauth.Permission, error) {
	if perms, ok, err := s.cache.Load(ctx); err != nil {
		s.logger.WarnContext(ctx, "hierarchy cache read failed", "error", err)
	} else if ok {
		return perms, nil
	}

	perms, err := s.repo.ListHierarchy(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permission hierarchy: %w", err)
	}
	if err := s.cache.Store(ctx, perms); err != nil {
		s.logger.WarnContext(ctx, "hierarchy cache write failed", "error", err)
	}
	return perms, nil
}
