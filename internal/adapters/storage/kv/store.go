package kv

import (
	"context"
	"time"
)

// Store persists small values per browser session (scope).
type Store interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
	Delete(ctx context.Context, scope, key string) error
	DeleteScope(ctx context.Context, scope string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scoped is the view of a Store limited to one scope.
// It satisfies the application store's Persistence interface.
type Scoped struct {
	store Store
	scope string
}

// NewScoped returns the view of s for scope.
func NewScoped(s Store, scope string) *Scoped {
	return &Scoped{store: s, scope: scope}
}

// Get returns the value stored under key.
func (v *Scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return v.store.Get(ctx, v.scope, key)
}

// Set stores value under key.
func (v *Scoped) Set(ctx context.Context, key, value string) error {
	return v.store.Set(ctx, v.scope, key, value)
}

// Delete removes key.
func (v *Scoped) Delete(ctx context.Context, key string) error {
	return v.store.Delete(ctx, v.scope, key)
}
