// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package backend is the typed client for the storefront REST surface. Each
// method issues exactly one request; retry and deduplication are composed
// by the caller.
package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/sigil-dev/storefront/internal/transport"
)

// Paths and route templates of the REST surface.
const (
	PathProducts      = "/api/products"
	PathCart          = "/api/cart"
	PathCartItem      = "/api/cart/{productId}"
	PathCheckout      = "/api/cart/checkout"
	PathSessions      = "/api/chat/sessions"
	PathSession       = "/api/chat/sessions/{id}"
	PathHistory       = "/api/chat/history"
	PathMessage       = "/api/chat/message"
	HeaderIdempotency = "Idempotency-Key"
)

// Requester is the subset of *transport.Client the API needs.
type Requester interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...transport.RequestOption) error
}

// API wraps a Requester with one method per endpoint.
type API struct {
	r Requester
}

func New(r Requester) *API {
	return &API{r: r}
}

func (a *API) ListProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := a.r.Do(ctx, http.MethodGet, PathProducts, nil, &out,
		transport.WithFallbackMessage("Failed to load products")); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) GetCart(ctx context.Context) (Cart, error) {
	var out Cart
	err := a.r.Do(ctx, http.MethodGet, PathCart, nil, &out,
		transport.WithFallbackMessage("Failed to load cart"))
	return out, err
}

func (a *API) AddCartItem(ctx context.Context, productID string, quantity int) (Cart, error) {
	var out Cart
	err := a.r.Do(ctx, http.MethodPost, PathCart,
		AddCartItemRequest{ProductID: productID, Quantity: quantity}, &out,
		transport.WithFallbackMessage("Failed to add item to cart"))
	return out, err
}

func (a *API) UpdateCartItem(ctx context.Context, productID string, quantity int) (Cart, error) {
	var out Cart
	err := a.r.Do(ctx, http.MethodPut, cartItemPath(productID),
		UpdateCartItemRequest{Quantity: quantity}, &out,
		transport.WithRoute(PathCartItem),
		transport.WithFallbackMessage("Failed to update cart item"))
	return out, err
}

func (a *API) RemoveCartItem(ctx context.Context, productID string) (Cart, error) {
	var out Cart
	err := a.r.Do(ctx, http.MethodDelete, cartItemPath(productID), nil, &out,
		transport.WithRoute(PathCartItem),
		transport.WithFallbackMessage("Failed to remove cart item"))
	return out, err
}

// Checkout places the order. idempotencyKey is sent as the Idempotency-Key
// header when non-empty.
func (a *API) Checkout(ctx context.Context, idempotencyKey string) (Order, error) {
	opts := []transport.RequestOption{transport.WithFallbackMessage("Checkout failed")}
	if idempotencyKey != "" {
		opts = append(opts, transport.WithHeader(HeaderIdempotency, idempotencyKey))
	}
	var out Order
	err := a.r.Do(ctx, http.MethodPost, PathCheckout, nil, &out, opts...)
	return out, err
}

func (a *API) CreateSession(ctx context.Context, name string) (SessionInfo, error) {
	var out SessionInfo
	err := a.r.Do(ctx, http.MethodPost, PathSessions, CreateSessionRequest{Name: name}, &out,
		transport.WithFallbackMessage("Failed to create chat session"))
	return out, err
}

func (a *API) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	var out SessionList
	if err := a.r.Do(ctx, http.MethodGet, PathSessions, nil, &out,
		transport.WithFallbackMessage("Failed to load chat sessions")); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

func (a *API) History(ctx context.Context, sessionID string) (History, error) {
	var out History
	err := a.r.Do(ctx, http.MethodGet, PathHistory, nil, &out,
		transport.WithQuery("session_id", sessionID),
		transport.WithFallbackMessage("Failed to load chat history"))
	if err == nil && out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out, err
}

func (a *API) SendMessage(ctx context.Context, sessionID, content string) (Reply, error) {
	var out Reply
	err := a.r.Do(ctx, http.MethodPost, PathMessage,
		SendMessageRequest{Message: content, SessionID: sessionID}, &out,
		transport.WithFallbackMessage("Failed to send message"))
	if err == nil && out.SessionID == "" {
		out.SessionID = sessionID
	}
	return out, err
}

func (a *API) RenameSession(ctx context.Context, sessionID, name string) (SessionInfo, error) {
	var out SessionInfo
	err := a.r.Do(ctx, http.MethodPut, sessionPath(sessionID), RenameSessionRequest{Name: name}, &out,
		transport.WithRoute(PathSession),
		transport.WithFallbackMessage("Failed to rename chat session"))
	return out, err
}

func (a *API) DeleteSession(ctx context.Context, sessionID string) error {
	return a.r.Do(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil,
		transport.WithRoute(PathSession),
		transport.WithFallbackMessage("Failed to delete chat session"))
}

func cartItemPath(productID string) string {
	return PathCart + "/" + url.PathEscape(productID)
}

func sessionPath(sessionID string) string {
	return PathSessions + "/" + url.PathEscape(sessionID)
}
