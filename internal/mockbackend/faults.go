// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mockbackend

import (
	"net/http"
	"sync"
	"time"
)

// faults counts requests and injects failures and latency. Routes are
// matched on "METHOD /path" with the concrete request path.
type faults struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]injected
	latency  time.Duration
}

type injected struct {
	status int
	detail string
}

func newFaults() *faults {
	return &faults{
		calls:    make(map[string]int),
		failures: make(map[string][]injected),
	}
}

// FailNext makes the next times requests to method+path fail with status.
func (s *Server) FailNext(method, path string, times, status int, detail string) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	key := method + " " + path
	for range times {
		s.faults.failures[key] = append(s.faults.failures[key], injected{status: status, detail: detail})
	}
}

// SetLatency delays every API request by d.
func (s *Server) SetLatency(d time.Duration) {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.latency = d
}

// Calls returns how many requests reached method+path, injected failures
// included.
func (s *Server) Calls(method, path string) int {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	return s.faults.calls[method+" "+path]
}

// ResetCalls zeroes every request counter.
func (s *Server) ResetCalls() {
	s.faults.mu.Lock()
	defer s.faults.mu.Unlock()
	s.faults.calls = make(map[string]int)
}

func (f *faults) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Method + " " + r.URL.Path

		f.mu.Lock()
		f.calls[key]++
		latency := f.latency
		var fail *injected
		if queue := f.failures[key]; len(queue) > 0 {
			fail = &queue[0]
			f.failures[key] = queue[1:]
		}
		f.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeProblem(w, fail.status, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}
