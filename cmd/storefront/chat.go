// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newChatCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the shopping assistant",
		Long: "Send a message to the shopping assistant. Starts an interactive session if no message is provided.\n" +
			"A session is created on first use; the current session is remembered between runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			if len(args) > 0 {
				return c.chatOnce(cmd, sessionID, strings.Join(args, " "))
			}
			return c.chatInteractive(cmd, sessionID)
		},
	}

	cmd.Flags().StringP("session", "s", "", "send to this session instead of the current one")

	return cmd
}

func (c *cli) chatOnce(cmd *cobra.Command, sessionID, content string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	return c.withApp(ctx, func(app *App) error {
		if err := adoptSession(ctx, app, sessionID); err != nil {
			return err
		}
		reply, err := app.Orchestrator.SendMessage(ctx, content, sessionID)
		if err != nil {
			return wrapRequest(err, "sending message")
		}
		return renderReply(cmd, reply)
	})
}

func (c *cli) chatInteractive(cmd *cobra.Command, sessionID string) error {
	ctx, stop := signal.NotifyContext(parentContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.withApp(ctx, func(app *App) error {
		if err := adoptSession(ctx, app, sessionID); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(out, titleStyle.Render("Shopping assistant"))
		_, _ = fmt.Fprintln(out, dimStyle.Render("Type a message. /new [name] starts a session, /quit exits."))

		return chatLoop(ctx, cmd.InOrStdin(), out, c.errOut, app, sessionID)
	})
}

func chatLoop(ctx context.Context, in io.Reader, out, errOut io.Writer, app *App, sessionID string) error {
	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, userStyle.Render("> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new" || strings.HasPrefix(line, "/new "):
			sess, err := app.Orchestrator.CreateSession(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/new")))
			if err != nil {
				_, _ = fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
				continue
			}
			sessionID = ""
			_, _ = fmt.Fprintln(out, dimStyle.Render("started session "+sess.ID))
			continue
		}

		reply, err := app.Orchestrator.SendMessage(ctx, line, sessionID)
		if err != nil {
			_, _ = fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
			continue
		}
		if err := writeMessage(out, newMessageView(reply)); err != nil {
			return err
		}
	}
}

// adoptSession makes sessionID current after checking the backend knows it.
func adoptSession(ctx context.Context, app *App, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := app.Orchestrator.ListSessions(ctx); err != nil {
		return wrapRequest(err, "listing sessions")
	}
	if _, ok := app.Orchestrator.Sessions().Session(sessionID); !ok {
		return sferr.New(sferr.CodeSessionNotFound, "no such session", sferr.FieldSessionID(sessionID))
	}
	if err := app.Orchestrator.SetCurrentSession(sessionID); err != nil {
		return sferr.Wrap(err, sferr.CodeSessionNotFound, "selecting session", sferr.FieldSessionID(sessionID))
	}
	return nil
}
