// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator_test

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/clientstate"
	"github.com/sigil-dev/storefront/internal/mockbackend"
	"github.com/sigil-dev/storefront/internal/orchestrator"
	"github.com/sigil-dev/storefront/internal/retry"
	"github.com/sigil-dev/storefront/internal/transport"
)

type noticeLog struct {
	mu      sync.Mutex
	notices []orchestrator.Notice
}

func (l *noticeLog) Notify(n orchestrator.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) All() []orchestrator.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]orchestrator.Notice(nil), l.notices...)
}

type harness struct {
	o       *orchestrator.Orchestrator
	srv     *mockbackend.Server
	state   clientstate.Store
	creds   *transport.Credentials
	notices *noticeLog
}

// newHarness wires an orchestrator to an in-process mock backend. Retries
// wait one millisecond so failure paths stay fast.
func newHarness(t *testing.T, mcfg mockbackend.Config, mutate ...func(*orchestrator.Config)) *harness {
	t.Helper()

	if mcfg.Responder == nil {
		mcfg.Responder = mockbackend.StaticResponder("hi")
	}
	srv, err := mockbackend.New(mcfg)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	creds := transport.NewCredentials()
	client, err := transport.New(transport.Options{BaseURL: hs.URL, Timeout: 5 * time.Second, Credentials: creds})
	require.NoError(t, err)

	h := &harness{
		srv:     srv,
		state:   clientstate.NewMemoryStore(),
		creds:   creds,
		notices: &noticeLog{},
	}
	cfg := orchestrator.Config{
		Backend:     backend.New(client),
		Credentials: creds,
		State:       h.state,
		Retry:       &retry.Policy{MaxRetries: 2, BaseDelay: time.Millisecond},
		Notifier:    h.notices,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	h.o, err = orchestrator.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.o.Close() })
	return h
}
