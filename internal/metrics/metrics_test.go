// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package metrics_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sigil-dev/storefront/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	rec.ObserveRequest("GET", "/api/cart", 200, 20*time.Millisecond)
	rec.ObserveRequest("GET", "/api/cart", 503, 20*time.Millisecond)
	rec.ObserveRequest("GET", "/api/cart", 0, time.Millisecond)

	count, err := testutil.GatherAndCount(reg, "storefront_client_request_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRecorder_RetryAndDedup(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	rec.Retry("fetch_cart")
	rec.Retry("fetch_cart")
	rec.DedupShared("GET /api/products")
	rec.DedupShared("chat:history:s-1")
	rec.DedupShared("chat:history:s-2")

	retries, err := testutil.GatherAndCount(reg, "storefront_client_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 1, retries)

	shared, err := testutil.GatherAndCount(reg, "storefront_client_dedup_shared_total")
	require.NoError(t, err)
	assert.Equal(t, 2, shared, "keys collapse to their namespace label")
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var rec *metrics.Recorder
	assert.NotPanics(t, func() {
		rec.ObserveRequest("GET", "/", 200, time.Millisecond)
		rec.Retry("x")
		rec.DedupShared("x")
		rec.Notice("x", "y")
	})
}

func TestStatusClassAndNamespace(t *testing.T) {
	assert.Equal(t, "error", metrics.StatusClass(0))
	assert.Equal(t, "2xx", metrics.StatusClass(204))
	assert.Equal(t, "4xx", metrics.StatusClass(404))
	assert.Equal(t, "5xx", metrics.StatusClass(502))

	assert.Equal(t, "GET", metrics.Namespace("GET /api/products"))
	assert.Equal(t, "cart", metrics.Namespace("cart:add:p1:1:nonce"))
	assert.Equal(t, "plain", metrics.Namespace("plain"))
}
