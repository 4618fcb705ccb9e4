// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session

import "sync"

// Store owns the session State. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State

	// notifyMu is taken before mu is released so subscribers see states in
	// the order they were produced.
	notifyMu sync.Mutex

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(State)
}

func NewStore() *Store {
	return &Store{
		state: State{Sessions: make(map[string]Session)},
		subs:  make(map[int]func(State)),
	}
}

// Dispatch applies ev and returns the resulting state. Subscribers are
// notified outside the state lock but in the order states were produced,
// so the last state a subscriber sees is the current one.
func (s *Store) Dispatch(ev Event) State {
	s.mu.Lock()
	next := Reduce(s.state, ev)
	s.state = next
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.notify(next)
	return next
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to receive every new state. fn may read the store
// but must not Dispatch. The returned func removes the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
