// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package clientstate persists small opaque client values, such as the
// current chat session id, across process restarts.
package clientstate

import (
	"context"
	"strings"
	"sync"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// Well-known keys.
const (
	KeyCurrentSession = "current_session_id"
	KeyUserID         = "user_id"
)

// Store is a string key/value store. Get reports found=false for missing
// keys rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Save(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
	Close() error
}

// Factory opens a Store at path.
type Factory func(path string) (Store, error)

var (
	factories   = map[string]Factory{"memory": func(string) (Store, error) { return NewMemoryStore(), nil }}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a named backend. Backend packages call this
// from init().
func RegisterBackend(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Open creates the store for backend. An empty backend or path selects the
// in-memory store.
func Open(backend, path string) (Store, error) {
	if backend == "" || strings.TrimSpace(path) == "" {
		backend = "memory"
	}

	factoriesMu.RLock()
	f, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, sferr.New(sferr.CodeStateStoreOpenFailure, "unsupported state backend",
			sferr.Field("backend", backend))
	}
	return f(path)
}

// ValidateKey rejects empty keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return sferr.New(sferr.CodeStateStoreInvalidKey, "state key is required")
	}
	return nil
}
