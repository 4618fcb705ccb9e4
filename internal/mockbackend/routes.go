// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mockbackend

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sigil-dev/storefront/internal/backend"
)

func (s *Server) registerRoutes() {
	// Catalog and cart
	huma.Register(s.api, huma.Operation{
		OperationID: "list-products",
		Method:      http.MethodGet,
		Path:        backend.PathProducts,
		Summary:     "List catalog products",
		Tags:        []string{"catalog"},
	}, s.handleListProducts)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-cart",
		Method:      http.MethodGet,
		Path:        backend.PathCart,
		Summary:     "Get the cart",
		Tags:        []string{"cart"},
	}, s.handleGetCart)

	huma.Register(s.api, huma.Operation{
		OperationID: "add-cart-item",
		Method:      http.MethodPost,
		Path:        backend.PathCart,
		Summary:     "Add a product to the cart",
		Tags:        []string{"cart"},
	}, s.handleAddCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-cart-item",
		Method:      http.MethodPut,
		Path:        backend.PathCartItem,
		Summary:     "Set the quantity of a cart item",
		Tags:        []string{"cart"},
	}, s.handleUpdateCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "remove-cart-item",
		Method:      http.MethodDelete,
		Path:        backend.PathCartItem,
		Summary:     "Remove a cart item",
		Tags:        []string{"cart"},
	}, s.handleRemoveCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkout",
		Method:      http.MethodPost,
		Path:        backend.PathCheckout,
		Summary:     "Place an order for the cart",
		Tags:        []string{"cart"},
	}, s.handleCheckout)

	// Chat
	huma.Register(s.api, huma.Operation{
		OperationID: "create-chat-session",
		Method:      http.MethodPost,
		Path:        backend.PathSessions,
		Summary:     "Create a chat session",
		Tags:        []string{"chat"},
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-chat-sessions",
		Method:      http.MethodGet,
		Path:        backend.PathSessions,
		Summary:     "List chat sessions",
		Tags:        []string{"chat"},
	}, s.handleListSessions)

	huma.Register(s.api, huma.Operation{
		OperationID: "rename-chat-session",
		Method:      http.MethodPut,
		Path:        backend.PathSession,
		Summary:     "Rename a chat session",
		Tags:        []string{"chat"},
	}, s.handleRenameSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "delete-chat-session",
		Method:        http.MethodDelete,
		Path:          backend.PathSession,
		Summary:       "Delete a chat session",
		Tags:          []string{"chat"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "chat-history",
		Method:      http.MethodGet,
		Path:        backend.PathHistory,
		Summary:     "Get the messages of a chat session",
		Tags:        []string{"chat"},
	}, s.handleHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-chat-message",
		Method:      http.MethodPost,
		Path:        backend.PathMessage,
		Summary:     "Send a message to the shopping assistant",
		Tags:        []string{"chat"},
	}, s.handleSendMessage)
}

// --- Request/Response types for huma ---

type productsOutput struct {
	Body []backend.Product
}

type cartOutput struct {
	Body backend.Cart
}

type addCartItemInput struct {
	Body struct {
		ProductID string `json:"product_id" minLength:"1" doc:"Product to add"`
		Quantity  int    `json:"quantity" doc:"Units to add"`
	}
}

type productPathInput struct {
	ProductID string `path:"productId"`
}

type updateCartItemInput struct {
	ProductID string `path:"productId"`
	Body      struct {
		Quantity int `json:"quantity" doc:"New quantity, 0 removes the item"`
	}
}

type checkoutInput struct {
	IdempotencyKey string `header:"Idempotency-Key" doc:"Repeated keys return the original order"`
}

type checkoutOutput struct {
	Body struct {
		Success     bool    `json:"success"`
		OrderNumber string  `json:"order_number,omitempty"`
		Total       float64 `json:"total"`
		Status      int     `json:"status,omitempty"`
		Message     string  `json:"message,omitempty"`
	}
}

type createSessionInput struct {
	Body struct {
		Name string `json:"name,omitempty" doc:"Optional display name"`
	}
}

type sessionOutput struct {
	Body backend.SessionInfo
}

type sessionsOutput struct {
	Body backend.SessionList
}

type sessionPathInput struct {
	ID string `path:"id"`
}

type renameSessionInput struct {
	ID   string `path:"id"`
	Body struct {
		Name string `json:"name" doc:"New display name"`
	}
}

type historyInput struct {
	SessionID string `query:"session_id" doc:"Session to read"`
}

type historyOutput struct {
	Body backend.History
}

type sendMessageInput struct {
	Body struct {
		Message   string `json:"message" minLength:"1" doc:"Message content"`
		SessionID string `json:"session_id" minLength:"1" doc:"Target session"`
	}
}

type sendMessageOutput struct {
	Body backend.Reply
}

// --- Handlers ---

func (s *Server) handleListProducts(_ context.Context, _ *struct{}) (*productsOutput, error) {
	return &productsOutput{Body: s.state.listProducts()}, nil
}

func (s *Server) handleGetCart(ctx context.Context, _ *struct{}) (*cartOutput, error) {
	return &cartOutput{Body: s.state.cart(ownerFrom(ctx))}, nil
}

func (s *Server) handleAddCartItem(ctx context.Context, input *addCartItemInput) (*cartOutput, error) {
	cart, err := s.state.addItem(ownerFrom(ctx), input.Body.ProductID, input.Body.Quantity)
	if err != nil {
		return nil, toHuma(err)
	}
	return &cartOutput{Body: cart}, nil
}

func (s *Server) handleUpdateCartItem(ctx context.Context, input *updateCartItemInput) (*cartOutput, error) {
	cart, err := s.state.updateItem(ownerFrom(ctx), input.ProductID, input.Body.Quantity)
	if err != nil {
		return nil, toHuma(err)
	}
	return &cartOutput{Body: cart}, nil
}

func (s *Server) handleRemoveCartItem(ctx context.Context, input *productPathInput) (*cartOutput, error) {
	cart, err := s.state.removeItem(ownerFrom(ctx), input.ProductID)
	if err != nil {
		return nil, toHuma(err)
	}
	return &cartOutput{Body: cart}, nil
}

func (s *Server) handleCheckout(ctx context.Context, input *checkoutInput) (*checkoutOutput, error) {
	order, placed, err := s.state.checkout(ownerFrom(ctx), input.IdempotencyKey, s.cfg.DeclineAbove)
	if err != nil {
		return nil, toHuma(err)
	}
	out := &checkoutOutput{}
	out.Body.Total = order.Total
	if !placed {
		out.Body.Status = http.StatusPaymentRequired
		out.Body.Message = "Payment declined"
		return out, nil
	}
	out.Body.Success = true
	out.Body.OrderNumber = order.OrderNumber
	return out, nil
}

func (s *Server) handleCreateSession(ctx context.Context, input *createSessionInput) (*sessionOutput, error) {
	return &sessionOutput{Body: s.state.createSession(ownerFrom(ctx), input.Body.Name)}, nil
}

func (s *Server) handleListSessions(ctx context.Context, _ *struct{}) (*sessionsOutput, error) {
	return &sessionsOutput{Body: backend.SessionList{Sessions: s.state.listSessions(ownerFrom(ctx))}}, nil
}

func (s *Server) handleRenameSession(ctx context.Context, input *renameSessionInput) (*sessionOutput, error) {
	info, err := s.state.renameSession(ownerFrom(ctx), input.ID, input.Body.Name)
	if err != nil {
		return nil, toHuma(err)
	}
	return &sessionOutput{Body: info}, nil
}

func (s *Server) handleDeleteSession(ctx context.Context, input *sessionPathInput) (*struct{}, error) {
	if err := s.state.deleteSession(ownerFrom(ctx), input.ID); err != nil {
		return nil, toHuma(err)
	}
	return nil, nil
}

func (s *Server) handleHistory(ctx context.Context, input *historyInput) (*historyOutput, error) {
	if input.SessionID == "" {
		return nil, huma.Error422UnprocessableEntity("session_id is required")
	}
	msgs, err := s.state.history(ownerFrom(ctx), input.SessionID)
	if err != nil {
		return nil, toHuma(err)
	}
	if msgs == nil {
		msgs = []backend.Message{}
	}
	return &historyOutput{Body: backend.History{SessionID: input.SessionID, Messages: msgs}}, nil
}

func (s *Server) handleSendMessage(ctx context.Context, input *sendMessageInput) (*sendMessageOutput, error) {
	owner := ownerFrom(ctx)
	if !s.state.sessionExists(owner, input.Body.SessionID) {
		return nil, huma.Error404NotFound("Session not found")
	}

	reply, err := s.cfg.Responder(ctx, s.state.listProducts(), input.Body.Message)
	if err != nil {
		return nil, huma.Error502BadGateway("Assistant unavailable", err)
	}

	answer, err := s.state.appendExchange(owner, input.Body.SessionID, input.Body.Message, reply)
	if err != nil {
		return nil, toHuma(err)
	}
	return &sendMessageOutput{Body: backend.Reply{SessionID: input.Body.SessionID, Reply: answer}}, nil
}

func toHuma(err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return huma.NewError(ae.status, ae.detail)
	}
	return huma.Error500InternalServerError("internal error", err)
}
