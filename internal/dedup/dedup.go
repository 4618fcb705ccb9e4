// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package dedup collapses concurrent calls sharing a key into one in-flight
// request.
//
// Invariants:
//   - At most one call per key runs at a time; later callers with the same
//     key receive the result of the running call.
//   - The entry is dropped once the call settles, whatever the outcome, so the
//     next call with that key always runs fn again.
//   - Keys are opaque; the group performs no key derivation.
package dedup

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group owns the set of in-flight calls.
type Group struct {
	sf       singleflight.Group
	onShared func(key string)

	mu      sync.Mutex
	waiting map[string]int
}

// Option configures a Group.
type Option func(*Group)

// WithSharedHook registers a callback invoked for every caller whose result
// came from a call shared with other callers.
func WithSharedHook(fn func(key string)) Option {
	return func(g *Group) { g.onShared = fn }
}

// New creates a Group.
func New(opts ...Option) *Group {
	g := &Group{waiting: make(map[string]int)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Waiting reports how many callers are currently waiting on key.
func (g *Group) Waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting[key]
}

// Forget drops key so the next call starts a fresh request even while the
// current one is still running.
func (g *Group) Forget(key string) {
	g.sf.Forget(key)
}

func (g *Group) enter(key string) {
	g.mu.Lock()
	g.waiting[key]++
	g.mu.Unlock()
}

func (g *Group) leave(key string) {
	g.mu.Lock()
	if g.waiting[key] <= 1 {
		delete(g.waiting, key)
	} else {
		g.waiting[key]--
	}
	g.mu.Unlock()
}

// Do returns the result of fn for key, joining an in-flight call when one
// exists. fn runs with a context detached from the first caller's
// cancellation so one impatient caller cannot fail the others; a caller whose
// ctx ends stops waiting and gets ctx.Err().
func Do[T any](ctx context.Context, g *Group, key string, fn func(context.Context) (T, error)) (T, error) {
	g.enter(key)
	defer g.leave(key)

	detached := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	var zero T
	select {
	case res := <-ch:
		if res.Shared && g.onShared != nil {
			g.onShared(key)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, _ := res.Val.(T)
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
