// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package throttle provides timer-based call coalescing: a Debouncer that
// runs only the last call after a quiet period, and a keyed Throttler that
// runs the first call at once and always runs the most recent trailing call
// after the interval.
package throttle

import (
	"sync"
	"time"
)

// Debouncer delays fn until no Call has happened for the configured delay,
// then runs it once with the most recent value. Runs never overlap.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	run sync.Mutex

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	pending bool
	value   T
}

func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Call records v and restarts the quiet period.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.value = v
	d.pending = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Pending reports whether a call is waiting for its quiet period to end.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Flush runs a pending call immediately and waits for it to finish.
func (d *Debouncer[T]) Flush() {
	d.run.Lock()
	defer d.run.Unlock()

	v, ok := d.take(0, false)
	if ok {
		d.fn(v)
	}
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.run.Lock()
	defer d.run.Unlock()

	v, ok := d.take(gen, true)
	if ok {
		d.fn(v)
	}
}

func (d *Debouncer[T]) take(gen uint64, checkGen bool) (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var zero T
	if !d.pending || (checkGen && gen != d.gen) {
		return zero, false
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	v := d.value
	d.pending = false
	d.value = zero
	return v, true
}
