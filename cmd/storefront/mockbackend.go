// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/storefront/internal/logging"
	"github.com/sigil-dev/storefront/internal/metrics"
	"github.com/sigil-dev/storefront/internal/mockbackend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newMockBackendCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run an in-memory storefront backend",
		Long:  "Serve the storefront REST API from memory for local development and demos. State is lost on exit. Prometheus metrics are served at /metrics.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			listen, _ := cmd.Flags().GetString("listen")
			if listen == "" {
				listen = c.cfg.Mock.Listen
			}

			srv, err := mockbackend.New(mockbackend.Config{
				ListenAddr:   listen,
				CORSOrigins:  c.cfg.Mock.CORSOrigins,
				AuthToken:    c.cfg.Mock.AuthToken,
				RateLimit:    c.cfg.Mock.RateLimit,
				RateBurst:    c.cfg.Mock.RateBurst,
				DeclineAbove: c.cfg.Mock.DeclineAbove,
				Logger:       logging.Component(c.log, "mockbackend"),
				// Process and runtime metrics of the mock itself.
				MetricsHandler: metrics.Handler(metrics.NewRegistry()),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(parentContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ready := func(addr string) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Mock backend listening on http://%s\n", addr)
			}
			if err := srv.Start(ctx, ready); err != nil {
				return sferr.Wrap(err, sferr.CodeMockBackendStartFailure, "running mock backend")
			}
			return nil
		},
	}

	cmd.Flags().String("listen", "", "listen address (default from config mock.listen)")

	return cmd
}
