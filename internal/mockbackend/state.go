// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mockbackend

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sigil-dev/storefront/internal/backend"
)

// DefaultCatalog is the catalog served when Config.Products is empty.
func DefaultCatalog() []backend.Product {
	return []backend.Product{
		{ID: "mug-classic", Name: "Classic Mug", Description: "Stoneware mug, 350 ml", Price: 12.5, Category: "kitchen", Stock: 40},
		{ID: "tee-logo", Name: "Logo T-Shirt", Description: "Organic cotton tee", Price: 24, Category: "apparel", Stock: 25},
		{ID: "tote-canvas", Name: "Canvas Tote", Description: "Heavy canvas shopping bag", Price: 18, Category: "accessories", Stock: 15},
		{ID: "notebook-a5", Name: "A5 Notebook", Description: "Dotted pages, lay-flat binding", Price: 9.75, Category: "stationery", Stock: 60},
		{ID: "bottle-steel", Name: "Steel Bottle", Description: "Insulated bottle, 500 ml", Price: 29, Category: "kitchen", Stock: 3},
	}
}

// apiError is a handler failure mapped to an HTTP status by the routes.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string { return e.detail }

func failf(status int, format string, args ...any) *apiError {
	return &apiError{status: status, detail: fmt.Sprintf(format, args...)}
}

type chatSession struct {
	info     backend.SessionInfo
	messages []backend.Message
}

// state is the in-memory data of every owner.
type state struct {
	mu       sync.Mutex
	clock    func() time.Time
	products []backend.Product
	carts    map[string][]backend.CartItem
	sessions map[string]map[string]*chatSession
	orders   map[string]backend.Order
}

func newState(products []backend.Product, clock func() time.Time) *state {
	return &state{
		clock:    clock,
		products: slices.Clone(products),
		carts:    make(map[string][]backend.CartItem),
		sessions: make(map[string]map[string]*chatSession),
		orders:   make(map[string]backend.Order),
	}
}

func (s *state) listProducts() []backend.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.products)
}

// product must be called with s.mu held.
func (s *state) product(id string) (backend.Product, bool) {
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return backend.Product{}, false
}

func (s *state) cart(owner string) backend.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked(owner)
}

func (s *state) cartLocked(owner string) backend.Cart {
	items := make([]backend.CartItem, 0, len(s.carts[owner]))
	var total float64
	for _, it := range s.carts[owner] {
		item := it
		if p, ok := s.product(it.ProductID); ok {
			item.Product = &p
			total += p.Price * float64(it.Quantity)
		}
		items = append(items, item)
	}
	return backend.Cart{Items: items, Total: math.Round(total*100) / 100}
}

func (s *state) addItem(owner, productID string, qty int) (backend.Cart, error) {
	if qty <= 0 {
		return backend.Cart{}, failf(422, "Quantity must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.product(productID)
	if !ok {
		return backend.Cart{}, failf(404, "Product not found")
	}
	items := s.carts[owner]
	idx := slices.IndexFunc(items, func(it backend.CartItem) bool { return it.ProductID == productID })
	current := 0
	if idx >= 0 {
		current = items[idx].Quantity
	}
	if current+qty > p.Stock {
		return backend.Cart{}, failf(409, "Only %d of %s left in stock", p.Stock, p.Name)
	}
	if idx >= 0 {
		items[idx].Quantity += qty
	} else {
		s.carts[owner] = append(items, backend.CartItem{ProductID: productID, Quantity: qty})
	}
	return s.cartLocked(owner), nil
}

func (s *state) updateItem(owner, productID string, qty int) (backend.Cart, error) {
	if qty < 0 {
		return backend.Cart{}, failf(422, "Quantity must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[owner]
	idx := slices.IndexFunc(items, func(it backend.CartItem) bool { return it.ProductID == productID })
	if idx < 0 {
		return backend.Cart{}, failf(404, "Item not in cart")
	}
	if qty == 0 {
		s.carts[owner] = slices.Delete(items, idx, idx+1)
		return s.cartLocked(owner), nil
	}
	if p, ok := s.product(productID); ok && qty > p.Stock {
		return backend.Cart{}, failf(409, "Only %d of %s left in stock", p.Stock, p.Name)
	}
	items[idx].Quantity = qty
	return s.cartLocked(owner), nil
}

func (s *state) removeItem(owner, productID string) (backend.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[owner]
	idx := slices.IndexFunc(items, func(it backend.CartItem) bool { return it.ProductID == productID })
	if idx < 0 {
		return backend.Cart{}, failf(404, "Item not in cart")
	}
	s.carts[owner] = slices.Delete(items, idx, idx+1)
	return s.cartLocked(owner), nil
}

// checkout places the owner's cart. A repeated idempotency key returns the
// first order without charging again.
func (s *state) checkout(owner, key string, declineAbove float64) (backend.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orderKey := owner + "|" + key
	if key != "" {
		if o, ok := s.orders[orderKey]; ok {
			return o, true, nil
		}
	}

	cart := s.cartLocked(owner)
	if len(cart.Items) == 0 {
		return backend.Order{}, false, failf(400, "Cart is empty")
	}
	if declineAbove > 0 && cart.Total > declineAbove {
		return backend.Order{Total: cart.Total}, false, nil
	}

	for _, it := range cart.Items {
		for i := range s.products {
			if s.products[i].ID == it.ProductID {
				s.products[i].Stock -= it.Quantity
			}
		}
	}
	order := backend.Order{
		OrderNumber: "ORD-" + strings.ToUpper(uuid.NewString()[:8]),
		Total:       cart.Total,
	}
	if key != "" {
		s.orders[orderKey] = order
	}
	delete(s.carts, owner)
	return order, true, nil
}

func (s *state) createSession(owner, name string) backend.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		name = "New chat"
	}
	sess := &chatSession{info: backend.SessionInfo{
		SessionID: uuid.NewString(),
		Name:      name,
		CreatedAt: s.clock().UTC(),
		IsActive:  true,
	}}
	if s.sessions[owner] == nil {
		s.sessions[owner] = make(map[string]*chatSession)
	}
	s.sessions[owner][sess.info.SessionID] = sess
	return sess.info
}

func (s *state) listSessions(owner string) []backend.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]backend.SessionInfo, 0, len(s.sessions[owner]))
	for _, sess := range s.sessions[owner] {
		out = append(out, sess.info)
	}
	slices.SortFunc(out, func(a, b backend.SessionInfo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

func (s *state) history(owner, sessionID string) ([]backend.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner][sessionID]
	if !ok {
		return nil, failf(404, "Session not found")
	}
	return slices.Clone(sess.messages), nil
}

// appendExchange stores the user message and the reply in that order.
func (s *state) appendExchange(owner, sessionID, content, reply string) (backend.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner][sessionID]
	if !ok {
		return backend.Message{}, failf(404, "Session not found")
	}
	now := s.clock().UTC()
	user := backend.Message{ID: uuid.NewString(), Content: content, Sender: backend.SenderUser, Timestamp: now}
	answer := backend.Message{ID: uuid.NewString(), Content: reply, Sender: backend.SenderAssistant, Timestamp: now}
	sess.messages = append(sess.messages, user, answer)
	sess.info.LastMessageAt = &now
	return answer, nil
}

func (s *state) sessionExists(owner, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[owner][sessionID]
	return ok
}

func (s *state) renameSession(owner, sessionID, name string) (backend.SessionInfo, error) {
	if strings.TrimSpace(name) == "" {
		return backend.SessionInfo{}, failf(422, "Session name must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[owner][sessionID]
	if !ok {
		return backend.SessionInfo{}, failf(404, "Session not found")
	}
	sess.info.Name = strings.TrimSpace(name)
	return sess.info, nil
}

func (s *state) deleteSession(owner, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[owner][sessionID]; !ok {
		return failf(404, "Session not found")
	}
	delete(s.sessions[owner], sessionID)
	return nil
}
