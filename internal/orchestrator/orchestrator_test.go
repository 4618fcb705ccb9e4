// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/clientstate"
	"github.com/sigil-dev/storefront/internal/metrics"
	"github.com/sigil-dev/storefront/internal/mockbackend"
	"github.com/sigil-dev/storefront/internal/orchestrator"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func TestNew_RequiresBackend(t *testing.T) {
	_, err := orchestrator.New(orchestrator.Config{})
	require.Error(t, err)
	assert.True(t, sferr.IsInvalidInput(err))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "plain error", err: errors.New("boom"), want: true},
		{name: "cancelled", err: context.Canceled, want: false},
		{name: "transport", err: &transport.NormalizedError{Status: 503, Kind: transport.KindTransport}, want: true},
		{name: "not found", err: &transport.NormalizedError{Status: 404, Kind: transport.KindClient}, want: false},
		{name: "rate limited", err: &transport.NormalizedError{Status: 429, Kind: transport.KindClient}, want: true},
		{name: "request timeout", err: &transport.NormalizedError{Status: 408, Kind: transport.KindClient}, want: true},
		{name: "application", err: &transport.NormalizedError{Status: 422, Kind: transport.KindApplication}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, orchestrator.Retryable(tt.err))
		})
	}
}

func TestSetAuthHeaders(t *testing.T) {
	h := newHarness(t, mockbackend.Config{AuthToken: "tok"})
	ctx := context.Background()

	_, err := h.o.FetchProducts(ctx)
	require.Error(t, err)
	assert.True(t, sferr.IsUnauthorized(err))
	assert.Equal(t, 1, h.srv.Calls(http.MethodGet, backend.PathProducts))

	h.o.SetAuthHeaders(map[string]string{"Authorization": "Bearer tok"})
	_, err = h.o.FetchProducts(ctx)
	require.NoError(t, err)

	h.o.SetAuthHeaders(nil)
	_, err = h.o.FetchProducts(ctx)
	assert.True(t, sferr.IsUnauthorized(err))
}

func TestSetUserID(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	require.NoError(t, h.o.SetUserID(ctx, "u-7"))
	assert.Equal(t, "u-7", h.creds.UserID())
	got, ok, err := h.state.Get(ctx, clientstate.KeyUserID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-7", got)

	require.NoError(t, h.o.SetUserID(ctx, ""))
	assert.Empty(t, h.creds.UserID())
	_, ok, err = h.state.Get(ctx, clientstate.KeyUserID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	h := newHarness(t, mockbackend.Config{}, func(c *orchestrator.Config) {
		c.Metrics = rec
	})
	ctx := context.Background()

	h.srv.FailNext(http.MethodGet, backend.PathProducts, 1, http.StatusServiceUnavailable, "warming up")
	_, err := h.o.FetchProducts(ctx)
	require.NoError(t, err)

	_, err = h.o.AddToCart(ctx, "mug-classic", -1)
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "storefront_client_retries_total", "storefront_client_notices_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
