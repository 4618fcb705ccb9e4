// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/config"
	"github.com/sigil-dev/storefront/internal/mockbackend"
)

func TestWireApp_RecordsAndServesClientMetrics(t *testing.T) {
	newCLIEnv(t, mockbackend.Config{})
	ctx := context.Background()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metrics.Listen = "127.0.0.1:0"

	app, err := WireApp(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	require.NotNil(t, app.MetricsServer)

	_, err = app.Orchestrator.FetchProducts(ctx)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(app.Registry, "storefront_client_request_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	resp, err := http.Get("http://" + app.MetricsServer.Addr() + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `route="/api/products"`)
}

func TestWireApp_CloseFlushesSpans(t *testing.T) {
	newCLIEnv(t, mockbackend.Config{})
	ctx := context.Background()

	var exports atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/traces" {
			exports.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(collector.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = strings.TrimPrefix(collector.URL, "http://")

	app, err := WireApp(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)

	_, err = app.Orchestrator.FetchCart(ctx)
	require.NoError(t, err)
	require.NoError(t, app.Close())

	assert.GreaterOrEqual(t, exports.Load(), int32(1))
}

func TestMetricsListenFlagIsValidated(t *testing.T) {
	env := newCLIEnv(t, mockbackend.Config{})

	_, _, err := env.run(t, "", "products", "--metrics-listen", "localhost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics.listen")
}
