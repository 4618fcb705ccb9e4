// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package backend

import "time"

// Product is a catalog entry.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
	Category    string  `json:"category,omitempty"`
	Stock       int     `json:"stock"`
}

type CartItem struct {
	ProductID string   `json:"product_id"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// Cart is the server's authoritative cart.
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// Order is the summary returned by checkout.
type Order struct {
	OrderNumber string  `json:"order_number"`
	Total       float64 `json:"total"`
}

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderError     Sender = "error"
)

type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionInfo is the session metadata the backend reports.
type SessionInfo struct {
	SessionID     string     `json:"session_id"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	IsActive      bool       `json:"is_active"`
}

type CreateSessionRequest struct {
	Name string `json:"name,omitempty"`
}

type RenameSessionRequest struct {
	Name string `json:"name"`
}

type SessionList struct {
	Sessions []SessionInfo `json:"sessions"`
}

type History struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Reply is the assistant's answer to one user message.
type Reply struct {
	SessionID string  `json:"session_id"`
	Reply     Message `json:"reply"`
}
