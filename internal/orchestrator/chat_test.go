// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/clientstate"
	"github.com/sigil-dev/storefront/internal/mockbackend"
	"github.com/sigil-dev/storefront/internal/orchestrator"
	"github.com/sigil-dev/storefront/internal/session"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func contents(ms []session.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, string(m.Sender)+":"+m.Content)
	}
	return out
}

func TestSendMessage_WithoutCurrentSessionCreatesExactlyOne(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	reply, err := h.o.SendMessage(ctx, "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply.Content)
	assert.Equal(t, session.SenderAssistant, reply.Sender)

	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, backend.PathSessions))
	st := h.o.Sessions()
	require.Len(t, st.List(), 1)
	current, ok := st.Current()
	require.True(t, ok)
	assert.Equal(t, []string{"user:hello", "assistant:hi"}, contents(current.Messages))
	assert.Equal(t, session.StatusActive, current.Status)

	server, err := h.o.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, server, 1)
}

func TestCreateSendHistory_Scenario(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, h.o.CurrentSessionID())
	assert.Empty(t, sess.Messages)

	_, err = h.o.SendMessage(ctx, "hello", "")
	require.NoError(t, err)

	history, err := h.o.FetchHistory(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:hello", "assistant:hi"}, contents(history))
}

func TestCreateSession_FailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	first, err := h.o.CreateSession(ctx, "first")
	require.NoError(t, err)
	before := h.o.Sessions()

	h.srv.FailNext(http.MethodPost, backend.PathSessions, 1, http.StatusInternalServerError, "database unavailable")
	_, err = h.o.CreateSession(ctx, "second")
	require.Error(t, err)

	var ne *transport.NormalizedError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, http.StatusInternalServerError, ne.Status)
	assert.Equal(t, "database unavailable", ne.Message)

	after := h.o.Sessions()
	assert.Equal(t, first.ID, after.CurrentID)
	assert.False(t, after.Creating)
	assert.Equal(t, before.Order, after.Order)

	require.NoError(t, h.o.Close())
	persisted, ok, err := h.state.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, first.ID, persisted, "the previous reference is restored")

	notices := h.notices.All()
	require.Len(t, notices, 1)
	assert.Equal(t, orchestrator.LevelError, notices[0].Level)
	assert.Equal(t, "chat.create", notices[0].Operation)
	assert.False(t, notices[0].Retry)
}

func TestCreateSession_PersistsCurrentIDOnClose(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	require.NoError(t, h.o.Close())
	got, ok, err := h.state.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sess.ID, got)
}

func TestCreateSession_PersistIsDebounced(t *testing.T) {
	h := newHarness(t, mockbackend.Config{}, func(c *orchestrator.Config) {
		c.PersistDebounce = 10 * time.Millisecond
	})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok, _ := h.state.Get(ctx, clientstate.KeyCurrentSession)
		return ok && got == sess.ID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSendMessage_FailureKeepsUserMessage(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	h.srv.FailNext(http.MethodPost, backend.PathMessage, 1, http.StatusBadGateway, "assistant offline")
	_, err = h.o.SendMessage(ctx, "anyone there?", sess.ID)
	require.Error(t, err)
	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, backend.PathMessage), "sends are never retried")

	got, ok := h.o.Sessions().Session(sess.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"user:anyone there?"}, contents(got.Messages))
	assert.Equal(t, session.StatusActive, got.Status)
	assert.Zero(t, got.Pending)
	assert.Error(t, got.LastError)

	notices := h.notices.All()
	require.Len(t, notices, 1)
	assert.Equal(t, "chat.send", notices[0].Operation)
}

func TestSendMessage_ReplyLandsInOriginatingSession(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	a, err := h.o.CreateSession(ctx, "a")
	require.NoError(t, err)
	b, err := h.o.CreateSession(ctx, "b")
	require.NoError(t, err)
	require.NoError(t, h.o.SetCurrentSession(a.ID))

	h.srv.SetLatency(150 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := h.o.SendMessage(ctx, "hello", "")
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		s, _ := h.o.Sessions().Session(a.ID)
		return s.Status == session.StatusSending
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, h.o.SetCurrentSession(b.ID))
	wg.Wait()

	st := h.o.Sessions()
	assert.Equal(t, b.ID, st.CurrentID)
	gotA, _ := st.Session(a.ID)
	gotB, _ := st.Session(b.ID)
	assert.Equal(t, []string{"user:hello", "assistant:hi"}, contents(gotA.Messages))
	assert.Empty(t, gotB.Messages)
}

func TestSendMessage_RejectsBlankContent(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})

	_, err := h.o.SendMessage(context.Background(), "   ", "")
	require.Error(t, err)
	assert.True(t, sferr.HasCode(err, sferr.CodeSessionSendInvalid))
	assert.Zero(t, h.srv.Calls(http.MethodPost, backend.PathSessions))
	assert.Zero(t, h.srv.Calls(http.MethodPost, backend.PathMessage))
}

func TestSendMessage_ToDeletedSessionFailsLocally(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)
	require.NoError(t, h.o.DeleteSession(ctx, sess.ID))

	_, err = h.o.SendMessage(ctx, "hello", sess.ID)
	assert.True(t, sferr.IsNotFound(err))
	assert.Zero(t, h.srv.Calls(http.MethodPost, backend.PathMessage))
}

func TestFetchHistory_RetriesTransientFailures(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	_, err := h.o.SendMessage(ctx, "hello", "")
	require.NoError(t, err)

	h.srv.FailNext(http.MethodGet, backend.PathHistory, 2, http.StatusServiceUnavailable, "try later")
	history, err := h.o.FetchHistory(ctx, "")
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, 3, h.srv.Calls(http.MethodGet, backend.PathHistory))
}

func TestFetchHistory_WithoutSession(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})

	_, err := h.o.FetchHistory(context.Background(), "")
	assert.True(t, sferr.IsNotFound(err))

	notices := h.notices.All()
	require.Len(t, notices, 1)
	assert.Equal(t, orchestrator.LevelWarning, notices[0].Level)
	assert.True(t, notices[0].Retry)
}

func TestFetchHistory_ConcurrentCallsShareOneRequest(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)
	h.srv.SetLatency(100 * time.Millisecond)

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.o.FetchHistory(ctx, sess.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.srv.Calls(http.MethodGet, backend.PathHistory))
}

func TestRenameSession(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	renamed, err := h.o.RenameSession(ctx, sess.ID, "  Gift ideas ")
	require.NoError(t, err)
	assert.Equal(t, "Gift ideas", renamed.Name)

	_, err = h.o.RenameSession(ctx, sess.ID, "")
	assert.True(t, sferr.HasCode(err, sferr.CodeSessionRenameInvalid))

	h.srv.FailNext(http.MethodPut, "/api/chat/sessions/"+sess.ID, 1, http.StatusInternalServerError, "boom")
	_, err = h.o.RenameSession(ctx, sess.ID, "Other")
	require.Error(t, err)
	got, _ := h.o.Sessions().Session(sess.ID)
	assert.Equal(t, "Gift ideas", got.Name, "a rejected rename keeps the old name")
}

func TestDeleteSession_ClearsCurrent(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	require.NoError(t, h.o.DeleteSession(ctx, ""))
	assert.Empty(t, h.o.CurrentSessionID())
	assert.Empty(t, h.o.Sessions().List())
	assert.Error(t, h.o.SetCurrentSession(sess.ID))

	require.NoError(t, h.o.Close())
	_, ok, err := h.state.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteSession_ServerFailureKeepsSession(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	sess, err := h.o.CreateSession(ctx, "")
	require.NoError(t, err)

	h.srv.FailNext(http.MethodDelete, "/api/chat/sessions/"+sess.ID, 1, http.StatusInternalServerError, "boom")
	require.Error(t, h.o.DeleteSession(ctx, sess.ID))
	assert.Equal(t, sess.ID, h.o.CurrentSessionID())
	assert.Len(t, h.o.Sessions().List(), 1)
}

func TestListSessions_Reconciles(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	_, err := h.o.CreateSession(ctx, "one")
	require.NoError(t, err)
	_, err = h.o.CreateSession(ctx, "two")
	require.NoError(t, err)

	list, err := h.o.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	names := []string{list[0].Name, list[1].Name}
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}

func TestRestore(t *testing.T) {
	h := newHarness(t, mockbackend.Config{})
	ctx := context.Background()

	require.NoError(t, h.state.Save(ctx, clientstate.KeyCurrentSession, "sess-restored"))
	require.NoError(t, h.state.Save(ctx, clientstate.KeyUserID, "u-42"))

	require.NoError(t, h.o.Restore(ctx))
	assert.Equal(t, "sess-restored", h.o.CurrentSessionID())
	assert.Equal(t, "u-42", h.creds.UserID())
}
