// Package store provides the session store backends and selects one from configuration.
//
// Backends: memory ([MemoryStore]), sqlite ([repositories.SessionRepository]) and redis ([RedisStore]). All
// implement [models.Store] and enforce the rolling session lifetime.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tunepipe/internal/models"
	"github.com/desertthunder/tunepipe/internal/repositories"
	"github.com/desertthunder/tunepipe/internal/shared"
)

// StoreType represents the type of store backend.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQLite StoreType = "sqlite"
	StoreTypeRedis  StoreType = "redis"
)

// ParseStoreType parses a string into a StoreType. Unknown values fall back to memory.
func ParseStoreType(s string) StoreType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite":
		return StoreTypeSQLite
	case "redis":
		return StoreTypeRedis
	default:
		return StoreTypeMemory
	}
}

// New creates the session store named by config.Session.Store.
func New(ctx context.Context, config *shared.Config) (models.Store, error) {
	ttl := config.Session.TTL()

	switch ParseStoreType(config.Session.Store) {
	case StoreTypeSQLite:
		repo, err := repositories.OpenSessionRepository(ctx, config.Database, ttl)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case StoreTypeRedis:
		opts := RedisOptions{URL: config.Redis.URL, KeyPrefix: config.Redis.KeyPrefix}
		rs, err := NewRedisStoreFromOptions(ctx, opts, ttl)
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return NewMemoryStore(ttl), nil
	}
}

// Purger is implemented by stores that need expired sessions removed explicitly.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// RunPurger removes expired sessions every interval until ctx is done. Stores without a Purge method are ignored.
func RunPurger(ctx context.Context, s models.Store, interval time.Duration, onErr func(error)) {
	p, ok := s.(Purger)
	if !ok {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.Purge(ctx); err != nil && onErr != nil {
				onErr(fmt.Errorf("session purge failed: %w", err))
			}
		}
	}
}
