package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrBackendNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the configured backend.
var ErrBackendNotRegistered = errors.New("config: store backend not registered")

// StoreFactory opens a store of type T for cfg.
type StoreFactory[T any] func(ctx context.Context, cfg StoreConfig) (T, error)

// Registry maps store backends to their constructors. It is safe for
// concurrent use.
type Registry[T any] struct {
	mu        sync.RWMutex
	factories map[StoreBackend]StoreFactory[T]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{factories: make(map[StoreBackend]StoreFactory[T])}
}

// Register registers factory under backend, replacing any earlier one.
func (r *Registry[T]) Register(backend StoreBackend, factory StoreFactory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

// Create opens the store selected by cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for it.
func (r *Registry[T]) Create(ctx context.Context, cfg StoreConfig) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}
