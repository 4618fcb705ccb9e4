// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package metrics exposes Prometheus instrumentation for outbound calls,
// retries and request deduplication. A nil *Recorder is valid and records
// nothing.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the client-side metric vectors registered on one registry.
type Recorder struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	dedupShared     *prometheus.CounterVec
	notices         *prometheus.CounterVec
}

// New registers the storefront client metrics on reg.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_client_request_total",
				Help: "Total number of backend HTTP requests",
			},
			[]string{"method", "route", "status_class"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_client_request_duration_seconds",
				Help:    "Duration of backend HTTP requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 8),
			},
			[]string{"method", "route", "status_class"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_client_retries_total",
				Help: "Number of retries performed by the retry policy",
			},
			[]string{"operation"},
		),
		dedupShared: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_client_dedup_shared_total",
				Help: "Number of calls served by an already in-flight request",
			},
			[]string{"namespace"},
		),
		notices: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_client_notices_total",
				Help: "User-visible failure notices emitted by the orchestrator",
			},
			[]string{"operation", "kind"},
		),
	}
}

// StatusClass buckets an HTTP status for labelling; status 0 means the
// request produced no response.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status > 0:
		return "1xx"
	default:
		return "error"
	}
}

func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	class := StatusClass(status)
	r.requestTotal.WithLabelValues(method, route, class).Inc()
	r.requestDuration.WithLabelValues(method, route, class).Observe(d.Seconds())
}

func (r *Recorder) Retry(operation string) {
	if r == nil {
		return
	}
	r.retries.WithLabelValues(operation).Inc()
}

// DedupShared counts a joined in-flight call. Only the key's namespace (the
// text before the first ':' or space) is used as label so nonce-bearing keys
// do not explode cardinality.
func (r *Recorder) DedupShared(key string) {
	if r == nil {
		return
	}
	r.dedupShared.WithLabelValues(Namespace(key)).Inc()
}

func (r *Recorder) Notice(operation, kind string) {
	if r == nil {
		return
	}
	r.notices.WithLabelValues(operation, kind).Inc()
}

// Namespace returns the leading segment of a dedup key.
func Namespace(key string) string {
	if idx := strings.IndexAny(key, ": "); idx > 0 {
		return key[:idx]
	}
	return key
}
