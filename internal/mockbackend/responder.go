// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mockbackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigil-dev/storefront/internal/backend"
)

// Responder produces the assistant reply to one user message.
type Responder func(ctx context.Context, catalog []backend.Product, message string) (string, error)

// StaticResponder always answers with reply.
func StaticResponder(reply string) Responder {
	return func(context.Context, []backend.Product, string) (string, error) {
		return reply, nil
	}
}

// DefaultResponder suggests catalog products whose name or category is
// mentioned in the message.
func DefaultResponder(_ context.Context, catalog []backend.Product, message string) (string, error) {
	words := strings.Fields(strings.ToLower(message))
	var hits []string
	for _, p := range catalog {
		if mentions(words, p) {
			hits = append(hits, fmt.Sprintf("%s ($%.2f, %d in stock)", p.Name, p.Price, p.Stock))
		}
	}
	if len(hits) == 0 {
		return "I can help you find products, manage your cart or check out. What are you looking for?", nil
	}
	return "You might like: " + strings.Join(hits, "; ") + ".", nil
}

func mentions(words []string, p backend.Product) bool {
	name := strings.ToLower(p.Name)
	category := strings.ToLower(p.Category)
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"")
		if len(w) < 3 {
			continue
		}
		if w == category || strings.Contains(name, strings.TrimSuffix(w, "s")) {
			return true
		}
	}
	return false
}
