// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/clientstate"
	_ "github.com/sigil-dev/storefront/internal/clientstate/sqlite" // register sqlite backend
	"github.com/sigil-dev/storefront/internal/config"
	"github.com/sigil-dev/storefront/internal/credentials"
	"github.com/sigil-dev/storefront/internal/logging"
	"github.com/sigil-dev/storefront/internal/metrics"
	"github.com/sigil-dev/storefront/internal/orchestrator"
	"github.com/sigil-dev/storefront/internal/retry"
	"github.com/sigil-dev/storefront/internal/telemetry"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// credentialStore is the subset of credentials.KeyringStore the CLI uses.
type credentialStore interface {
	Save(account string, b credentials.Bundle) error
	Load(account string) (credentials.Bundle, error)
	Delete(account string) error
}

// credentialStoreFactory creates the credential store. It is a package-level
// variable so tests can substitute an in-memory implementation.
var credentialStoreFactory = func() credentialStore {
	return credentials.NewKeyringStore(credentials.DefaultService)
}

// App holds the wired client and the resources it owns.
type App struct {
	Orchestrator *orchestrator.Orchestrator
	State        clientstate.Store
	BaseURL      string
	// Registry holds the client metrics of this process.
	Registry *prometheus.Registry
	// MetricsServer is non-nil when metrics.listen is set.
	MetricsServer *metrics.Server

	tracer *telemetry.Provider
}

// WireApp builds the transport, persistence and orchestration layers from
// cfg and restores the persisted client state.
func WireApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, notifier orchestrator.Notifier) (*App, error) {
	// The tracer provider goes first: the instrumented transport binds to
	// the global provider when it is built.
	tracer, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		Exporter:       cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, err
	}
	app := &App{BaseURL: cfg.API.BaseURL, Registry: metrics.NewRegistry(), tracer: tracer}
	recorder := metrics.New(app.Registry)

	creds := transport.NewCredentials()

	bundle, err := credentialStoreFactory().Load(cfg.API.BaseURL)
	switch {
	case err == nil:
		creds.SetAuthHeaders(bundle.Headers)
	case sferr.HasCode(err, sferr.CodeCredentialNotFound):
	default:
		log.Debug().Err(err).Msg("keyring unavailable, continuing without stored credentials")
	}
	if cfg.Auth.Token != "" {
		headers := make(map[string]string, len(bundle.Headers)+1)
		for k, v := range bundle.Headers {
			headers[k] = v
		}
		headers["Authorization"] = "Bearer " + cfg.Auth.Token
		creds.SetAuthHeaders(headers)
	}

	client, err := transport.New(transport.Options{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.API.Timeout,
		Credentials: creds,
		RateLimit:   cfg.API.RateLimit,
		RateBurst:   cfg.API.RateBurst,
		Tracing:     tracer.Enabled(),
		Metrics:     recorder,
		Logger:      logging.Component(log, "transport"),
		UserAgent:   cfg.API.UserAgent + "/" + version,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.State, err = clientstate.Open(cfg.State.Backend, cfg.State.Path)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	policy := retry.Default()
	policy.MaxRetries = cfg.Retry.MaxRetries
	policy.BaseDelay = cfg.Retry.BaseDelay
	policy.RetryIf = orchestrator.Retryable

	o, err := orchestrator.New(orchestrator.Config{
		Backend:          backend.New(client),
		Credentials:      creds,
		State:            app.State,
		Retry:            &policy,
		Notifier:         notifier,
		Metrics:          recorder,
		Logger:           logging.Component(log, "orchestrator"),
		ThrottleInterval: cfg.Cart.ThrottleInterval,
		PersistDebounce:  cfg.Session.PersistDebounce,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Orchestrator = o

	if cfg.Metrics.Listen != "" {
		app.MetricsServer, err = metrics.Listen(cfg.Metrics.Listen, app.Registry, logging.Component(log, "metrics"))
		if err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	if err := o.Restore(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	// An explicit id wins over the stored one. Without any id a fresh one is
	// generated and persisted so the backend keeps the same cart across runs.
	switch {
	case cfg.Auth.UserID != "":
		creds.SetUserID(cfg.Auth.UserID)
	case bundle.UserID != "":
		creds.SetUserID(bundle.UserID)
	case creds.UserID() == "":
		if err := o.SetUserID(ctx, uuid.NewString()); err != nil {
			log.Warn().Err(err).Msg("persisting generated user id failed")
		}
	}

	return app, nil
}

// Close flushes pending writes, releases the state store, stops the metrics
// server and flushes buffered spans. It tolerates a partially wired App.
func (a *App) Close() error {
	var errs []error
	if a.Orchestrator != nil {
		errs = append(errs, a.Orchestrator.Close())
	}
	if a.State != nil {
		errs = append(errs, a.State.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.MetricsServer != nil {
		errs = append(errs, a.MetricsServer.Shutdown(ctx))
	}
	errs = append(errs, a.tracer.Shutdown(ctx))

	for _, err := range errs {
		if err != nil {
			return sferr.Join(errs...)
		}
	}
	return nil
}

// withApp wires the app for one command invocation and tears it down after.
func (c *cli) withApp(ctx context.Context, fn func(*App) error) error {
	app, err := WireApp(ctx, c.cfg, c.log, c.notifier())
	if err != nil {
		return sferr.Wrap(err, sferr.CodeCLISetupFailure, "initializing client")
	}
	defer func() {
		if err := app.Close(); err != nil {
			c.log.Warn().Err(err).Msg("closing client")
		}
	}()
	return fn(app)
}

const (
	// commandTimeout bounds a single non-interactive command.
	commandTimeout = 2 * time.Minute
	// shutdownTimeout bounds the metrics server and span flush on exit.
	shutdownTimeout = 5 * time.Second
)
