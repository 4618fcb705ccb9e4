// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package orchestrator coordinates the storefront client: it applies local
// state transitions, issues backend calls through the deduplicator and the
// retry policy, and reconciles the stores with what the server returns.
//
// The orchestrator owns no state of its own beyond the helpers that pace
// calls. Chat state lives in a session.Store and cart state in a cart.Store.
package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/cart"
	"github.com/sigil-dev/storefront/internal/clientstate"
	"github.com/sigil-dev/storefront/internal/dedup"
	"github.com/sigil-dev/storefront/internal/metrics"
	"github.com/sigil-dev/storefront/internal/retry"
	"github.com/sigil-dev/storefront/internal/session"
	"github.com/sigil-dev/storefront/internal/throttle"
	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

const (
	DefaultThrottleInterval = 300 * time.Millisecond
	DefaultPersistDebounce  = 500 * time.Millisecond

	persistTimeout = 5 * time.Second
)

// Dedup keys for idempotent reads.
const (
	keyProducts   = "GET " + backend.PathProducts
	keyCart       = "GET " + backend.PathCart
	keySessions   = "GET " + backend.PathSessions
	keyCheckout   = "cart:checkout"
	keyCreate     = "chat:create"
	prefixHistory = "chat:history:"
	prefixCartAdd = "cart:add:"
)

// Backend is the server surface the orchestrator drives. *backend.API
// satisfies it.
type Backend interface {
	ListProducts(ctx context.Context) ([]backend.Product, error)
	GetCart(ctx context.Context) (backend.Cart, error)
	AddCartItem(ctx context.Context, productID string, quantity int) (backend.Cart, error)
	UpdateCartItem(ctx context.Context, productID string, quantity int) (backend.Cart, error)
	RemoveCartItem(ctx context.Context, productID string) (backend.Cart, error)
	Checkout(ctx context.Context, idempotencyKey string) (backend.Order, error)

	CreateSession(ctx context.Context, name string) (backend.SessionInfo, error)
	ListSessions(ctx context.Context) ([]backend.SessionInfo, error)
	History(ctx context.Context, sessionID string) (backend.History, error)
	SendMessage(ctx context.Context, sessionID, content string) (backend.Reply, error)
	RenameSession(ctx context.Context, sessionID, name string) (backend.SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Config holds dependencies for the Orchestrator. Backend is required;
// every other field has a working default.
type Config struct {
	Backend     Backend
	Credentials *transport.Credentials
	Sessions    *session.Store
	Cart        *cart.Store
	// State persists the current session id and user id. Defaults to an
	// in-memory store.
	State clientstate.Store
	Dedup *dedup.Group
	// Retry applies to idempotent reads only. Nil uses retry.Default().
	Retry    *retry.Policy
	Notifier Notifier
	Metrics  *metrics.Recorder
	Logger   zerolog.Logger

	ThrottleInterval time.Duration
	PersistDebounce  time.Duration

	Clock func() time.Time
	NewID func() string
}

// Orchestrator sequences store transitions and backend calls.
type Orchestrator struct {
	backend  Backend
	creds    *transport.Credentials
	sessions *session.Store
	cart     *cart.Store
	state    clientstate.Store
	group    *dedup.Group
	policy   retry.Policy
	notifier Notifier
	metrics  *metrics.Recorder
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string

	persist    *throttle.Debouncer[string]
	quantities *throttle.Throttler[string, int]

	checkoutMu sync.Mutex
	checkout   struct{ key, cart string }

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Backend == nil {
		return nil, sferr.New(sferr.CodeClientRequestInvalid, "orchestrator requires a backend")
	}

	o := &Orchestrator{
		backend:  cfg.Backend,
		creds:    cfg.Credentials,
		sessions: cfg.Sessions,
		cart:     cfg.Cart,
		state:    cfg.State,
		group:    cfg.Dedup,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		now:      cfg.Clock,
		newID:    cfg.NewID,
	}
	if o.creds == nil {
		o.creds = transport.NewCredentials()
	}
	if o.sessions == nil {
		o.sessions = session.NewStore()
	}
	if o.cart == nil {
		o.cart = cart.NewStore()
	}
	if o.state == nil {
		o.state = clientstate.NewMemoryStore()
	}
	if o.group == nil {
		o.group = dedup.New(dedup.WithSharedHook(o.metrics.DedupShared))
	}
	if o.notifier == nil {
		o.notifier = NotifierFunc(func(Notice) {})
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}

	o.policy = retry.Default()
	if cfg.Retry != nil {
		o.policy = *cfg.Retry
	}
	if o.policy.RetryIf == nil {
		o.policy.RetryIf = Retryable
	}

	throttleInterval := cfg.ThrottleInterval
	if throttleInterval <= 0 {
		throttleInterval = DefaultThrottleInterval
	}
	persistDebounce := cfg.PersistDebounce
	if persistDebounce <= 0 {
		persistDebounce = DefaultPersistDebounce
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())
	o.persist = throttle.NewDebouncer(persistDebounce, o.saveCurrentSession)
	o.quantities = throttle.NewThrottler(throttleInterval, o.applyQueuedQuantity)

	return o, nil
}

// Close runs queued quantity updates, writes the pending current session id
// and stops background work. It does not close the client state store.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		o.quantities.Close()
		o.persist.Flush()
		o.cancel()
	})
	return nil
}

// SessionStore exposes the chat store for subscription.
func (o *Orchestrator) SessionStore() *session.Store { return o.sessions }

// CartStore exposes the cart store for subscription.
func (o *Orchestrator) CartStore() *cart.Store { return o.cart }

// SetAuthHeaders replaces the auxiliary auth headers sent with every
// request. Nil clears them.
func (o *Orchestrator) SetAuthHeaders(headers map[string]string) {
	o.creds.SetAuthHeaders(headers)
}

// SetUserID sets the user id header and persists it. An empty id clears
// both.
func (o *Orchestrator) SetUserID(ctx context.Context, userID string) error {
	o.creds.SetUserID(userID)
	if userID == "" {
		return o.state.Clear(ctx, clientstate.KeyUserID)
	}
	return o.state.Save(ctx, clientstate.KeyUserID, userID)
}

// Restore loads the persisted user id and current session id.
func (o *Orchestrator) Restore(ctx context.Context) error {
	userID, ok, err := o.state.Get(ctx, clientstate.KeyUserID)
	if err != nil {
		return sferr.Wrap(err, sferr.CodeStateStoreFailure, "restoring user id")
	}
	if ok {
		o.creds.SetUserID(userID)
	}

	current, ok, err := o.state.Get(ctx, clientstate.KeyCurrentSession)
	if err != nil {
		return sferr.Wrap(err, sferr.CodeStateStoreFailure, "restoring current session")
	}
	if ok && current != "" {
		o.sessions.Dispatch(session.CurrentChanged{SessionID: current})
		o.log.Debug().Str("session_id", current).Msg("restored current session")
	}
	return nil
}

// Retryable reports whether a failed read is worth another attempt. Network
// failures, 5xx responses, timeouts and rate limiting are; other client
// errors and application failures are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne *transport.NormalizedError
	if !errors.As(err, &ne) {
		return true
	}
	switch ne.Kind {
	case transport.KindTransport:
		return true
	case transport.KindClient:
		return ne.Status == http.StatusRequestTimeout || ne.Status == http.StatusTooManyRequests
	default:
		return false
	}
}

// read runs an idempotent call once per key at a time and retries it under
// the read policy. Joined callers share the retries.
func read[T any](ctx context.Context, o *Orchestrator, key, operation string, fn func(context.Context) (T, error)) (T, error) {
	policy := o.policy
	userHook := policy.OnRetry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		o.metrics.Retry(operation)
		o.log.Debug().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Err(err).
			Msg("retrying read")
		if userHook != nil {
			userHook(attempt, wait, err)
		}
	}
	return dedup.Do(ctx, o.group, key, func(ctx context.Context) (T, error) {
		return retry.Do(ctx, policy, fn)
	})
}

func (o *Orchestrator) saveCurrentSession(id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(o.ctx), persistTimeout)
	defer cancel()

	var err error
	if id == "" {
		err = o.state.Clear(ctx, clientstate.KeyCurrentSession)
	} else {
		err = o.state.Save(ctx, clientstate.KeyCurrentSession, id)
	}
	if err != nil {
		o.log.Warn().Err(err).Str("session_id", id).Msg("persisting current session failed")
	}
}
