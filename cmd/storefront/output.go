// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/storefront/internal/cart"
	"github.com/sigil-dev/storefront/internal/orchestrator"
	"github.com/sigil-dev/storefront/internal/session"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func formatOf(cmd *cobra.Command) (outputFormat, error) {
	raw, _ := cmd.Flags().GetString("output")
	switch f := outputFormat(raw); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	default:
		return "", sferr.Errorf(sferr.CodeCLIInputInvalid, "unknown output format %q (want table, json or yaml)", raw)
	}
}

// render writes v as JSON or YAML, or calls table for the default format.
func render(cmd *cobra.Command, v any, table func(io.Writer) error) error {
	f, err := formatOf(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch f {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return table(out)
	}
}

// notifier prints orchestration notices to stderr. Read failures carry a
// hint that the command can simply be run again.
func (c *cli) notifier() orchestrator.Notifier {
	return orchestrator.NotifierFunc(func(n orchestrator.Notice) {
		c.log.Debug().Str("operation", n.Operation).Str("level", string(n.Level)).Err(n.Err).Msg("notice")
		if n.Level != orchestrator.LevelWarning || c.errOut == nil {
			return
		}
		_, _ = fmt.Fprintln(c.errOut, warnStyle.Render(n.Operation+": "+n.Message()))
		if n.Retry {
			_, _ = fmt.Fprintln(c.errOut, dimStyle.Render("  the request can be retried"))
		}
	})
}

// --- views ---

type productView struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Price       float64 `json:"price" yaml:"price"`
	Category    string  `json:"category,omitempty" yaml:"category,omitempty"`
	Stock       int     `json:"stock" yaml:"stock"`
}

func productViews(ps []cart.Product) []productView {
	out := make([]productView, 0, len(ps))
	for _, p := range ps {
		out = append(out, productView{
			ID: p.ID, Name: p.Name, Description: p.Description,
			Price: p.Price, Category: p.Category, Stock: p.Stock,
		})
	}
	return out
}

func renderProducts(cmd *cobra.Command, ps []cart.Product) error {
	views := productViews(ps)
	return render(cmd, views, func(w io.Writer) error {
		if len(views) == 0 {
			_, err := fmt.Fprintln(w, "No products found")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
		for _, p := range views {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Category, p.Price, p.Stock)
		}
		return tw.Flush()
	})
}

type cartItemView struct {
	ProductID string  `json:"product_id" yaml:"product_id"`
	Name      string  `json:"name,omitempty" yaml:"name,omitempty"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	Subtotal  float64 `json:"subtotal" yaml:"subtotal"`
}

type cartView struct {
	Items []cartItemView `json:"items" yaml:"items"`
	Count int            `json:"count" yaml:"count"`
	Total float64        `json:"total" yaml:"total"`
}

func newCartView(s cart.State) cartView {
	v := cartView{Items: make([]cartItemView, 0, len(s.Items)), Count: s.Count(), Total: s.Total}
	for _, it := range s.Items {
		iv := cartItemView{ProductID: it.ProductID, Quantity: it.Quantity, Subtotal: it.Subtotal()}
		if it.Product != nil {
			iv.Name = it.Product.Name
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

func renderCart(cmd *cobra.Command, s cart.State) error {
	view := newCartView(s)
	return render(cmd, view, func(w io.Writer) error {
		if len(view.Items) == 0 {
			_, err := fmt.Fprintln(w, "Cart is empty")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tSUBTOTAL")
		for _, it := range view.Items {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", it.ProductID, it.Name, it.Quantity, it.Subtotal)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Total: %.2f (%d items)", view.Total, view.Count)))
		return err
	})
}

type orderView struct {
	OrderNumber string  `json:"order_number" yaml:"order_number"`
	Total       float64 `json:"total" yaml:"total"`
}

func renderOrder(cmd *cobra.Command, o cart.Order) error {
	view := orderView(o)
	return render(cmd, view, func(w io.Writer) error {
		_, err := fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Order %s placed, total %.2f", view.OrderNumber, view.Total)))
		return err
	})
}

type sessionView struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	LastMessageAt time.Time `json:"last_message_at,omitempty" yaml:"last_message_at,omitempty"`
	Messages      int       `json:"messages" yaml:"messages"`
	Current       bool      `json:"current" yaml:"current"`
}

func newSessionView(s session.Session, current string) sessionView {
	return sessionView{
		ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt, LastMessageAt: s.LastMessageAt,
		Messages: len(s.Messages), Current: s.ID == current,
	}
}

func renderSessions(cmd *cobra.Command, ss []session.Session, current string) error {
	views := make([]sessionView, 0, len(ss))
	for _, s := range ss {
		views = append(views, newSessionView(s, current))
	}
	return render(cmd, views, func(w io.Writer) error {
		if len(views) == 0 {
			_, err := fmt.Fprintln(w, "No sessions found")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, " \tID\tNAME\tLAST MESSAGE")
		for _, s := range views {
			marker := " "
			if s.Current {
				marker = "*"
			}
			last := "-"
			if !s.LastMessageAt.IsZero() {
				last = s.LastMessageAt.Local().Format(time.DateTime)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, s.ID, s.Name, last)
		}
		return tw.Flush()
	})
}

func renderSession(cmd *cobra.Command, s session.Session, current string) error {
	view := newSessionView(s, current)
	return render(cmd, view, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "%s %s\n", successStyle.Render(view.ID), view.Name)
		return err
	})
}

type messageView struct {
	ID        string    `json:"id" yaml:"id"`
	Sender    string    `json:"sender" yaml:"sender"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

func newMessageView(m session.Message) messageView {
	return messageView{ID: m.ID, Sender: string(m.Sender), Content: m.Content, Timestamp: m.Timestamp}
}

func writeMessage(w io.Writer, m messageView) error {
	label := botStyle.Render("assistant")
	if m.Sender == string(session.SenderUser) {
		label = userStyle.Render("you")
	}
	_, err := fmt.Fprintf(w, "%s %s\n", label, m.Content)
	return err
}

func renderMessages(cmd *cobra.Command, ms []session.Message) error {
	views := make([]messageView, 0, len(ms))
	for _, m := range ms {
		views = append(views, newMessageView(m))
	}
	return render(cmd, views, func(w io.Writer) error {
		if len(views) == 0 {
			_, err := fmt.Fprintln(w, "No messages yet")
			return err
		}
		for _, m := range views {
			if err := writeMessage(w, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func renderReply(cmd *cobra.Command, m session.Message) error {
	view := newMessageView(m)
	return render(cmd, view, func(w io.Writer) error {
		return writeMessage(w, view)
	})
}
