// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator

import (
	"context"
	"strings"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/dedup"
	"github.com/sigil-dev/storefront/internal/session"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

const (
	opCreate  = "chat.create"
	opSend    = "chat.send"
	opHistory = "chat.history"
	opList    = "chat.list"
	opRename  = "chat.rename"
	opDelete  = "chat.delete"
	opSwitch  = "chat.switch"
)

// CreateSession creates a session on the server and makes it current. The
// persisted current session reference is dropped while the create is in
// flight and restored if it fails. Concurrent creates with the same name
// share one request.
func (o *Orchestrator) CreateSession(ctx context.Context, name string) (session.Session, error) {
	name = strings.TrimSpace(name)
	previous := o.CurrentSessionID()
	o.persist.Call("")

	key := keyCreate
	if name != "" {
		key += ":" + name
	}
	info, err := dedup.Do(ctx, o.group, key, func(ctx context.Context) (backend.SessionInfo, error) {
		o.sessions.Dispatch(session.CreateStarted{})
		info, err := o.backend.CreateSession(ctx, name)
		if err == nil && info.SessionID == "" {
			err = transport.Normalize(
				sferr.New(sferr.CodeTransportResponseInvalid, "server returned a session without an id"),
				"Could not create chat session")
		}
		if err != nil {
			o.sessions.Dispatch(session.CreateFailed{Err: err})
			return backend.SessionInfo{}, err
		}
		o.sessions.Dispatch(session.CreateSucceeded{Session: session.InfoFromWire(info)})
		return info, nil
	})
	if err != nil {
		if previous != "" {
			o.persist.Call(previous)
		}
		return session.Session{}, o.mutationFailed(opCreate, err)
	}

	o.persist.Call(info.SessionID)
	o.log.Info().Str("session_id", info.SessionID).Msg("chat session created")
	sess, _ := o.sessions.Snapshot().Session(info.SessionID)
	return sess, nil
}

// SendMessage appends content as a user message to the target session
// before the request is made, then appends the assistant reply. With an
// empty sessionID the current session is used, and one is created when
// there is none. The target session is fixed before the first await, so a
// reply lands in the session it belongs to even if the current session
// changes meanwhile. On failure the user message stays in the history.
func (o *Orchestrator) SendMessage(ctx context.Context, content, sessionID string) (session.Message, error) {
	if err := session.ValidateContent(content); err != nil {
		return session.Message{}, o.mutationFailed(opSend, err)
	}

	id := sessionID
	if id == "" {
		id = o.CurrentSessionID()
	}
	if id == "" {
		sess, err := o.CreateSession(ctx, "")
		if err != nil {
			return session.Message{}, err
		}
		id = sess.ID
	}
	if err := o.requireLive(id); err != nil {
		return session.Message{}, o.mutationFailed(opSend, err)
	}

	msg := session.Message{
		ID:        o.newID(),
		Content:   content,
		Sender:    session.SenderUser,
		Timestamp: o.now().UTC(),
	}
	o.sessions.Dispatch(session.MessageQueued{SessionID: id, Message: msg})

	reply, err := o.backend.SendMessage(ctx, id, content)
	if err != nil {
		o.sessions.Dispatch(session.SendFailed{SessionID: id, Err: err})
		return session.Message{}, o.mutationFailed(opSend, err)
	}

	answer := session.MessageFromWire(reply.Reply)
	if answer.ID == "" {
		answer.ID = o.newID()
	}
	if answer.Timestamp.IsZero() {
		answer.Timestamp = o.now().UTC()
	}
	o.sessions.Dispatch(session.ReplyReceived{SessionID: id, Reply: answer})
	return answer, nil
}

// FetchHistory replaces the local messages of a session with the server's
// copy. An empty sessionID means the current session.
func (o *Orchestrator) FetchHistory(ctx context.Context, sessionID string) ([]session.Message, error) {
	id := sessionID
	if id == "" {
		id = o.CurrentSessionID()
	}
	if id == "" {
		return nil, o.readFailed(opHistory, errNoCurrentSession())
	}

	h, err := read(ctx, o, prefixHistory+id, opHistory, func(ctx context.Context) (backend.History, error) {
		return o.backend.History(ctx, id)
	})
	if err != nil {
		return nil, o.readFailed(opHistory, err)
	}

	st := o.sessions.Dispatch(session.HistoryLoaded{SessionID: id, Messages: session.MessagesFromWire(h.Messages)})
	sess, _ := st.Session(id)
	return sess.Messages, nil
}

// ListSessions reconciles local sessions with the server's list and returns
// the live sessions, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]session.Session, error) {
	infos, err := read(ctx, o, keySessions, opList, o.backend.ListSessions)
	if err != nil {
		return nil, o.readFailed(opList, err)
	}

	listed := make([]session.Session, 0, len(infos))
	for _, info := range infos {
		listed = append(listed, session.InfoFromWire(info))
	}
	return o.sessions.Dispatch(session.SessionsListed{Sessions: listed}).List(), nil
}

// RenameSession renames a session once the server accepts the new name.
func (o *Orchestrator) RenameSession(ctx context.Context, sessionID, name string) (session.Session, error) {
	if err := session.ValidateName(name); err != nil {
		return session.Session{}, o.mutationFailed(opRename, err)
	}
	id := sessionID
	if id == "" {
		id = o.CurrentSessionID()
	}
	if id == "" {
		return session.Session{}, o.mutationFailed(opRename, errNoCurrentSession())
	}

	info, err := o.backend.RenameSession(ctx, id, strings.TrimSpace(name))
	if err != nil {
		return session.Session{}, o.mutationFailed(opRename, err)
	}
	newName := info.Name
	if newName == "" {
		newName = strings.TrimSpace(name)
	}

	st := o.sessions.Dispatch(session.Renamed{SessionID: id, Name: newName})
	sess, _ := st.Session(id)
	return sess, nil
}

// DeleteSession deletes a session once the server acknowledges it. Deleting
// the current session leaves no session current.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	id := sessionID
	if id == "" {
		id = o.CurrentSessionID()
	}
	if id == "" {
		return o.mutationFailed(opDelete, errNoCurrentSession())
	}

	if err := o.backend.DeleteSession(ctx, id); err != nil {
		return o.mutationFailed(opDelete, err)
	}

	wasCurrent := o.CurrentSessionID() == id
	o.sessions.Dispatch(session.Deleted{SessionID: id})
	if wasCurrent {
		o.persist.Call("")
	}
	o.log.Info().Str("session_id", id).Msg("chat session deleted")
	return nil
}

// SetCurrentSession switches the current session. In-flight requests for
// the previous session are not cancelled. An empty id leaves no session
// current.
func (o *Orchestrator) SetCurrentSession(sessionID string) error {
	st := o.sessions.Dispatch(session.CurrentChanged{SessionID: sessionID})
	if st.CurrentID != sessionID {
		return o.mutationFailed(opSwitch, sferr.New(sferr.CodeSessionNotFound,
			"session has been deleted", sferr.FieldSessionID(sessionID)))
	}
	o.persist.Call(sessionID)
	return nil
}

func (o *Orchestrator) CurrentSessionID() string {
	return o.sessions.Snapshot().CurrentID
}

// Sessions returns the current chat state.
func (o *Orchestrator) Sessions() session.State {
	return o.sessions.Snapshot()
}

func (o *Orchestrator) requireLive(id string) error {
	if sess, ok := o.sessions.Snapshot().Session(id); ok && sess.Status == session.StatusDeleted {
		return sferr.New(sferr.CodeSessionNotFound, "session has been deleted", sferr.FieldSessionID(id))
	}
	return nil
}

func errNoCurrentSession() error {
	return sferr.New(sferr.CodeSessionNotFound, "no current chat session")
}
