package buildstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrUnavailable is returned by a [Guarded] store while its backend is
// considered down.
var ErrUnavailable = errors.New("buildstore: backend unavailable")

// Guarded wraps a [Store] with a circuit breaker: after maxFailures
// consecutive backend errors it rejects calls with [ErrUnavailable] for the
// cool-down period, then lets a single trial call through. A successful trial
// closes the breaker; a failed one re-opens it.
//
// [ErrNotFound] is an answer, not a backend failure, and does not count.
type Guarded struct {
	inner       Store
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	failures int
	openedAt time.Time
	trialing bool
}

var _ Store = (*Guarded)(nil)

// NewGuarded wraps inner. Non-positive arguments default to 5 failures and
// 30 seconds.
func NewGuarded(inner Store, maxFailures int, cooldown time.Duration) *Guarded {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Guarded{inner: inner, maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Open reports whether calls are currently being rejected.
func (g *Guarded) Open() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures >= g.maxFailures && g.now().Sub(g.openedAt) < g.cooldown
}

func (g *Guarded) do(fn func() error) error {
	g.mu.Lock()
	trial := false
	if g.failures >= g.maxFailures {
		if g.trialing || g.now().Sub(g.openedAt) < g.cooldown {
			g.mu.Unlock()
			return ErrUnavailable
		}
		g.trialing, trial = true, true
	}
	g.mu.Unlock()

	err := fn()

	g.mu.Lock()
	defer g.mu.Unlock()
	if trial {
		g.trialing = false
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		g.failures++
		if g.failures >= g.maxFailures {
			g.openedAt = g.now()
			if g.failures == g.maxFailures || trial {
				slog.Warn("buildstore: backend marked unavailable", "consecutive_failures", g.failures, "cooldown", g.cooldown)
			}
		}
		return err
	}
	if g.failures >= g.maxFailures {
		slog.Info("buildstore: backend recovered")
	}
	g.failures = 0
	return err
}

// Save implements [Store.Save].
func (g *Guarded) Save(ctx context.Context, b *Build) error {
	return g.do(func() error { return g.inner.Save(ctx, b) })
}

// Get implements [Store.Get].
func (g *Guarded) Get(ctx context.Context, id string) (Build, error) {
	var b Build
	err := g.do(func() (err error) {
		b, err = g.inner.Get(ctx, id)
		return err
	})
	return b, err
}

// List implements [Store.List].
func (g *Guarded) List(ctx context.Context, opts ListOptions) ([]Build, error) {
	var builds []Build
	err := g.do(func() (err error) {
		builds, err = g.inner.List(ctx, opts)
		return err
	})
	return builds, err
}

// Delete implements [Store.Delete].
func (g *Guarded) Delete(ctx context.Context, id string) error {
	return g.do(func() error { return g.inner.Delete(ctx, id) })
}

// Ping checks the wrapped store when it supports pinging. It bypasses the
// breaker so readiness reflects the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	if p, ok := g.inner.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the wrapped store when it supports closing.
func (g *Guarded) Close() {
	if c, ok := g.inner.(interface{ Close() }); ok {
		c.Close()
	}
}
