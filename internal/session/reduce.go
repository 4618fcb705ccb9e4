// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package session

import (
	"maps"
	"slices"
	"time"
)

// Event is a state transition input.
type Event interface {
	sessionEvent()
}

// CreateStarted marks a create call in flight.
type CreateStarted struct{}

// CreateSucceeded adopts the created session as current with an empty
// message list.
type CreateSucceeded struct {
	Session Session
}

// CreateFailed clears the in-flight flag and leaves everything else as it was.
type CreateFailed struct {
	Err error
}

// SessionsListed reconciles local sessions against the server's list.
type SessionsListed struct {
	Sessions []Session
}

// CurrentChanged switches the current session. An empty ID clears it.
type CurrentChanged struct {
	SessionID string
}

// MessageQueued appends an optimistic user message.
type MessageQueued struct {
	SessionID string
	Message   Message
}

// ReplyReceived appends the assistant reply to the session the message was
// sent to.
type ReplyReceived struct {
	SessionID string
	Reply     Message
}

// SendFailed ends a send without a reply. The queued user message stays.
type SendFailed struct {
	SessionID string
	Err       error
}

// HistoryLoaded replaces a session's messages with the server's ordering.
type HistoryLoaded struct {
	SessionID string
	Messages  []Message
}

type Renamed struct {
	SessionID string
	Name      string
}

type Deleted struct {
	SessionID string
}

func (CreateStarted) sessionEvent()   {}
func (CreateSucceeded) sessionEvent() {}
func (CreateFailed) sessionEvent()    {}
func (SessionsListed) sessionEvent()  {}
func (CurrentChanged) sessionEvent()  {}
func (MessageQueued) sessionEvent()   {}
func (ReplyReceived) sessionEvent()   {}
func (SendFailed) sessionEvent()      {}
func (HistoryLoaded) sessionEvent()   {}
func (Renamed) sessionEvent()         {}
func (Deleted) sessionEvent()         {}

// Reduce returns the state that follows s after ev. It never mutates s and
// returns s unchanged for unknown or inapplicable events. Every event that
// touches a session names it by id; the current session is never implied.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case CreateStarted:
		s.Creating = true
		s.LastError = nil
		return s

	case CreateSucceeded:
		if e.Session.ID == "" {
			return s
		}
		next := s.withSessions()
		sess, ok := next.Sessions[e.Session.ID]
		if !ok || sess.Status == StatusDeleted {
			sess = e.Session
			sess.Messages = nil
			sess.Pending = 0
		} else {
			sess = mergeInfo(sess, e.Session)
		}
		sess.Status = StatusActive
		sess.LastError = nil
		next.Sessions[sess.ID] = sess
		next.Order = prepend(next.Order, sess.ID)
		next.CurrentID = sess.ID
		next.Creating = false
		next.LastError = nil
		return next

	case CreateFailed:
		s.Creating = false
		s.LastError = e.Err
		return s

	case SessionsListed:
		return reconcile(s, e.Sessions)

	case CurrentChanged:
		if e.SessionID == "" {
			s.CurrentID = ""
			return s
		}
		sess, ok := s.Sessions[e.SessionID]
		if ok && sess.Status == StatusDeleted {
			return s
		}
		next := s
		if !ok {
			next = s.withSessions()
			next.Sessions[e.SessionID] = Session{ID: e.SessionID, Status: StatusActive}
			next.Order = append(slices.Clone(next.Order), e.SessionID)
		}
		next.CurrentID = e.SessionID
		return next

	case MessageQueued:
		if e.SessionID == "" || e.Message.ID == "" {
			return s
		}
		sess, ok := s.Sessions[e.SessionID]
		if ok && sess.Status == StatusDeleted {
			return s
		}
		if !ok {
			sess = Session{ID: e.SessionID}
		}
		if hasMessage(sess.Messages, e.Message.ID) {
			return s
		}
		next := s.withSessions()
		if !ok {
			next.Order = append(slices.Clone(next.Order), e.SessionID)
		}
		sess.Messages = appendMessage(sess.Messages, e.Message)
		sess.Pending++
		sess.Status = StatusSending
		sess.LastError = nil
		sess.LastMessageAt = latest(sess.LastMessageAt, e.Message.Timestamp)
		next.Sessions[e.SessionID] = sess
		return next

	case ReplyReceived:
		sess, ok := s.Sessions[e.SessionID]
		if !ok || sess.Status == StatusDeleted {
			return s
		}
		next := s.withSessions()
		if e.Reply.ID != "" && !hasMessage(sess.Messages, e.Reply.ID) {
			sess.Messages = appendMessage(sess.Messages, e.Reply)
			sess.LastMessageAt = latest(sess.LastMessageAt, e.Reply.Timestamp)
		}
		sess = settleSend(sess)
		next.Sessions[e.SessionID] = sess
		return next

	case SendFailed:
		sess, ok := s.Sessions[e.SessionID]
		if !ok || sess.Status == StatusDeleted {
			return s
		}
		next := s.withSessions()
		sess = settleSend(sess)
		sess.LastError = e.Err
		next.Sessions[e.SessionID] = sess
		next.LastError = e.Err
		return next

	case HistoryLoaded:
		if e.SessionID == "" {
			return s
		}
		sess, ok := s.Sessions[e.SessionID]
		if ok && sess.Status == StatusDeleted {
			return s
		}
		next := s.withSessions()
		if !ok {
			sess = Session{ID: e.SessionID, Status: StatusActive}
			next.Order = append(slices.Clone(next.Order), e.SessionID)
		}
		sess.Messages = uniqueMessages(e.Messages)
		if n := len(sess.Messages); n > 0 {
			sess.LastMessageAt = latest(sess.LastMessageAt, sess.Messages[n-1].Timestamp)
		}
		sess.LastError = nil
		next.Sessions[e.SessionID] = sess
		return next

	case Renamed:
		sess, ok := s.Sessions[e.SessionID]
		if !ok || sess.Status == StatusDeleted {
			return s
		}
		next := s.withSessions()
		sess.Name = e.Name
		next.Sessions[e.SessionID] = sess
		return next

	case Deleted:
		sess, ok := s.Sessions[e.SessionID]
		if ok && sess.Status == StatusDeleted {
			return s
		}
		next := s.withSessions()
		next.Sessions[e.SessionID] = Session{ID: e.SessionID, Name: sess.Name, Status: StatusDeleted}
		next.Order = slices.DeleteFunc(slices.Clone(next.Order), func(id string) bool { return id == e.SessionID })
		if next.CurrentID == e.SessionID {
			next.CurrentID = ""
		}
		return next
	}
	return s
}

// reconcile merges listed metadata into local sessions. Local messages are
// kept. Sessions the server no longer lists are dropped unless they are
// current or still have a send in flight.
func reconcile(s State, listed []Session) State {
	next := s.withSessions()
	order := make([]string, 0, len(listed)+1)
	seen := make(map[string]bool, len(listed))

	for _, info := range listed {
		if info.ID == "" || seen[info.ID] {
			continue
		}
		local, ok := next.Sessions[info.ID]
		if ok && local.Status == StatusDeleted {
			continue
		}
		seen[info.ID] = true
		if ok {
			local = mergeInfo(local, info)
		} else {
			local = info
			local.Messages = nil
			local.Status = StatusActive
		}
		next.Sessions[info.ID] = local
		order = append(order, info.ID)
	}

	for _, id := range s.Order {
		if seen[id] {
			continue
		}
		local := next.Sessions[id]
		if id == s.CurrentID || local.Pending > 0 {
			order = append(order, id)
			continue
		}
		delete(next.Sessions, id)
	}

	next.Order = order
	return next
}

func mergeInfo(local, info Session) Session {
	if info.Name != "" {
		local.Name = info.Name
	}
	if !info.CreatedAt.IsZero() {
		local.CreatedAt = info.CreatedAt
	}
	local.LastMessageAt = latest(local.LastMessageAt, info.LastMessageAt)
	local.IsActive = info.IsActive
	return local
}

func settleSend(sess Session) Session {
	if sess.Pending > 0 {
		sess.Pending--
	}
	if sess.Pending == 0 {
		sess.Status = StatusActive
	}
	return sess
}

// withSessions returns a copy of s whose Sessions map may be written.
func (s State) withSessions() State {
	if s.Sessions == nil {
		s.Sessions = make(map[string]Session)
		return s
	}
	s.Sessions = maps.Clone(s.Sessions)
	return s
}

func appendMessage(ms []Message, m Message) []Message {
	out := make([]Message, len(ms), len(ms)+1)
	copy(out, ms)
	return append(out, m)
}

func hasMessage(ms []Message, id string) bool {
	return slices.ContainsFunc(ms, func(m Message) bool { return m.ID == id })
}

func uniqueMessages(ms []Message) []Message {
	out := make([]Message, 0, len(ms))
	seen := make(map[string]bool, len(ms))
	for _, m := range ms {
		if m.ID != "" {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
		}
		out = append(out, m)
	}
	return out
}

func prepend(order []string, id string) []string {
	out := make([]string, 0, len(order)+1)
	out = append(out, id)
	for _, existing := range order {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
