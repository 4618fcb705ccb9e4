// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package throttle

import (
	"sync"
	"time"
)

// Throttler limits fn to one run per key per interval. The first Call for
// an idle key runs at once. Calls made during the interval are coalesced
// and the most recent one always runs when the interval ends; it is never
// dropped. Runs for the same key never overlap, so they reach fn in call
// order. Each run happens on its own goroutine.
type Throttler[K comparable, V any] struct {
	interval time.Duration
	fn       func(K, V)

	mu      sync.Mutex
	windows map[K]*window[V]
	closed  bool
	wg      sync.WaitGroup
}

type window[V any] struct {
	timer   *time.Timer
	running bool
	expired bool
	pending bool
	value   V
}

func NewThrottler[K comparable, V any](interval time.Duration, fn func(K, V)) *Throttler[K, V] {
	return &Throttler[K, V]{
		interval: interval,
		fn:       fn,
		windows:  make(map[K]*window[V]),
	}
}

// Call schedules fn(k, v). It reports false once the throttler is closed.
func (t *Throttler[K, V]) Call(k K, v V) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if w, ok := t.windows[k]; ok {
		w.pending = true
		w.value = v
		return true
	}
	w := &window[V]{}
	t.windows[k] = w
	t.start(k, w, v)
	return true
}

// Active reports whether k is inside its interval or still running.
func (t *Throttler[K, V]) Active(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.windows[k]
	return ok
}

// Close stops accepting calls, runs every pending trailing call without
// waiting for its interval, and waits for all runs to return.
func (t *Throttler[K, V]) Close() {
	t.mu.Lock()
	t.closed = true
	for k, w := range t.windows {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.expired = true
		t.advance(k, w)
	}
	t.mu.Unlock()

	t.wg.Wait()
}

// start must be called with t.mu held.
func (t *Throttler[K, V]) start(k K, w *window[V], v V) {
	w.running = true
	w.expired = t.closed
	if !t.closed {
		w.timer = time.AfterFunc(t.interval, func() { t.expire(k, w) })
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.fn(k, v)
		t.finish(k, w)
	}()
}

func (t *Throttler[K, V]) expire(k K, w *window[V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w.expired = true
	t.advance(k, w)
}

func (t *Throttler[K, V]) finish(k K, w *window[V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w.running = false
	t.advance(k, w)
}

// advance starts the trailing run or retires the window once the current
// run has returned and the interval is over. Must be called with t.mu held.
func (t *Throttler[K, V]) advance(k K, w *window[V]) {
	if t.windows[k] != w || w.running || !w.expired {
		return
	}
	if !w.pending {
		delete(t.windows, k)
		return
	}
	v := w.value
	var zero V
	w.pending = false
	w.value = zero
	t.start(k, w, v)
}
