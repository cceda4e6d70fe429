// Package core defines the storage ports of the dispatch service and the small caching
// services layered over them.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// CacheRepository defines the interface for caching operations.
// This follows the hexagonal architecture pattern where the core defines interfaces
// and the data layer provides implementations.
type CacheRepository interface {
	// Set stores a value in the cache with the given key and TTL.
	// If TTL is 0, the key will not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value from the cache by key.
	// Returns nil if the key doesn't exist or has expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key from the cache.
	// Returns true if the key was deleted, false if it didn't exist.
	Delete(ctx context.Context, key string) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

const hierarchyCacheKey = "permissions:hierarchy:v1"

// HierarchyCacheConfig holds configuration for the permission hierarchy cache.
type HierarchyCacheConfig struct {
	TTL time.Duration
}

// DefaultHierarchyCacheConfig returns a HierarchyCacheConfig with sensible defaults.
func DefaultHierarchyCacheConfig() HierarchyCacheConfig {
	return HierarchyCacheConfig{TTL: 5 * time.Minute}
}

// HierarchyCache keeps a snapshot of the permission hierarchy so that resolving a user's
// permissions does not re-read the whole hierarchy table on every call.
// Writers that change the hierarchy must call Invalidate.
type HierarchyCache struct {
	cache CacheRepository
	ttl   time.Duration
}

// NewHierarchyCache creates a new HierarchyCache.
func NewHierarchyCache(cache CacheRepository, cfg HierarchyCacheConfig) *HierarchyCache {
	return &HierarchyCache{cache: cache, ttl: cfg.TTL}
}

// Load returns the cached hierarchy. ok is false on a miss.
func (c *HierarchyCache) Load(ctx context.Context) ([]domainauth.Permission, bool, error) {
	if c == nil || c.cache == nil {
		return nil, false, nil
	}
	raw, err := c.cache.Get(ctx, hierarchyCacheKey)
	if err != nil {
		return nil, false, err
	}
	if raw == nil {
		return nil, false, nil
	}
	var perms []domainauth.Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false, fmt.Errorf("decode cached hierarchy: %w", err)
	}
	return perms, true, nil
}

// Store caches the hierarchy snapshot.
func (c *HierarchyCache) Store(ctx context.Context, perms []domainauth.Permission) error {
	if c == nil || c.cache == nil {
		return nil
	}
	if perms == nil {
		perms = []domainauth.Permission{}
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encode hierarchy: %w", err)
	}
	return c.cache.Set(ctx, hierarchyCacheKey, raw, c.ttl)
}

// Invalidate drops the cached snapshot.
func (c *HierarchyCache) Invalidate(ctx context.Context) error {
	if c == nil || c.cache == nil {
		return nil
	}
	_, err := c.cache.Delete(ctx, hierarchyCacheKey)
	return err
}
