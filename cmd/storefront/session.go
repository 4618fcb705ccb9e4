// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newSessionCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage chat sessions",
		Long:    "List, create, select, rename and delete chat sessions and show their history.",
	}

	cmd.AddCommand(
		newSessionListCmd(c),
		newSessionNewCmd(c),
		newSessionUseCmd(c),
		newSessionRenameCmd(c),
		newSessionDeleteCmd(c),
		newSessionHistoryCmd(c),
	)

	return cmd
}

func newSessionListCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chat sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				sessions, err := app.Orchestrator.ListSessions(ctx)
				if err != nil {
					return wrapRequest(err, "listing sessions")
				}
				return renderSessions(cmd, sessions, app.Orchestrator.CurrentSessionID())
			})
		},
	}
}

func newSessionNewCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "new [name]",
		Short: "Create a chat session and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				sess, err := app.Orchestrator.CreateSession(ctx, strings.Join(args, " "))
				if err != nil {
					return wrapRequest(err, "creating session")
				}
				return renderSession(cmd, sess, sess.ID)
			})
		},
	}
}

func newSessionUseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "use <session-id>",
		Short: "Make a session current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				if err := adoptSession(ctx, app, args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Now using session %s\n", args[0])
				return err
			})
		},
	}
}

func newSessionRenameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <name>",
		Short: "Rename a chat session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				// Load the session list so the renamed session is known locally.
				if _, err := app.Orchestrator.ListSessions(ctx); err != nil {
					return wrapRequest(err, "listing sessions")
				}
				sess, err := app.Orchestrator.RenameSession(ctx, args[0], strings.Join(args[1:], " "))
				if err != nil {
					return wrapRequest(err, "renaming session", sferr.FieldSessionID(args[0]))
				}
				return renderSession(cmd, sess, app.Orchestrator.CurrentSessionID())
			})
		},
	}
}

func newSessionDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				if err := app.Orchestrator.DeleteSession(ctx, args[0]); err != nil {
					return wrapRequest(err, "deleting session", sferr.FieldSessionID(args[0]))
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return err
			})
		},
	}
}

func newSessionHistoryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show the messages of a session (default: current)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				messages, err := app.Orchestrator.FetchHistory(ctx, id)
				if err != nil {
					return wrapRequest(err, "fetching history")
				}
				return renderMessages(cmd, messages)
			})
		},
	}
}
