// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package session holds chat session state. All changes go through Reduce,
// a pure transition function; Store serializes Reduce calls and fans the
// resulting state out to subscribers.
package session

import (
	"strings"
	"time"

	"github.com/sigil-dev/storefront/internal/backend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// Status is the lifecycle position of a session, or of the store as a whole
// when no session is current.
type Status string

const (
	StatusNone     Status = "none"
	StatusCreating Status = "creating"
	StatusActive   Status = "active"
	StatusSending  Status = "sending"
	StatusDeleted  Status = "deleted"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderError     Sender = "error"
)

// Message is immutable once created.
type Message struct {
	ID        string
	Content   string
	Sender    Sender
	Timestamp time.Time
}

// Session is one chat thread. Messages are kept in submission order.
type Session struct {
	ID            string
	Name          string
	Messages      []Message
	CreatedAt     time.Time
	LastMessageAt time.Time
	IsActive      bool
	Status        Status
	// Pending counts sends awaiting a reply.
	Pending   int
	LastError error
}

// State is the complete session state. Values returned by Reduce share
// backing storage with their predecessor and must be treated as read-only.
type State struct {
	CurrentID string
	Sessions  map[string]Session
	// Order lists live session ids, newest first. Deleted sessions are kept
	// in Sessions as tombstones but are absent from Order.
	Order     []string
	Creating  bool
	LastError error
}

// Session returns the session with the given id, including tombstones.
func (s State) Session(id string) (Session, bool) {
	sess, ok := s.Sessions[id]
	return sess, ok
}

// Current returns the current session.
func (s State) Current() (Session, bool) {
	if s.CurrentID == "" {
		return Session{}, false
	}
	return s.Session(s.CurrentID)
}

// List returns live sessions in display order.
func (s State) List() []Session {
	out := make([]Session, 0, len(s.Order))
	for _, id := range s.Order {
		if sess, ok := s.Sessions[id]; ok && sess.Status != StatusDeleted {
			out = append(out, sess)
		}
	}
	return out
}

// Status summarizes the store: creating while a create is in flight, none
// without a current session, otherwise the current session's status.
func (s State) Status() Status {
	if s.Creating {
		return StatusCreating
	}
	cur, ok := s.Current()
	if !ok {
		return StatusNone
	}
	return cur.Status
}

// ValidateContent rejects blank messages before any network call.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return sferr.New(sferr.CodeSessionSendInvalid, "message must not be empty")
	}
	return nil
}

// ValidateName rejects blank session names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return sferr.New(sferr.CodeSessionRenameInvalid, "session name must not be empty")
	}
	return nil
}

// MessageFromWire converts a backend message.
func MessageFromWire(m backend.Message) Message {
	sender := Sender(m.Sender)
	switch sender {
	case SenderUser, SenderAssistant, SenderError:
	default:
		sender = SenderAssistant
	}
	return Message{ID: m.ID, Content: m.Content, Sender: sender, Timestamp: m.Timestamp}
}

func MessagesFromWire(ms []backend.Message) []Message {
	out := make([]Message, 0, len(ms))
	for _, m := range ms {
		out = append(out, MessageFromWire(m))
	}
	return out
}

// InfoFromWire converts backend session metadata into a Session without
// messages.
func InfoFromWire(info backend.SessionInfo) Session {
	sess := Session{
		ID:        info.SessionID,
		Name:      info.Name,
		CreatedAt: info.CreatedAt,
		IsActive:  info.IsActive,
		Status:    StatusActive,
	}
	if info.LastMessageAt != nil {
		sess.LastMessageAt = *info.LastMessageAt
	}
	return sess
}
