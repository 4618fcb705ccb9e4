// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package mockbackend

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// CookieName is the anonymous visitor cookie.
const CookieName = "storefront_visitor"

type ownerKey struct{}

// ownerMiddleware resolves who owns the cart and chat sessions of a
// request: the X-User-ID header when present, otherwise the visitor cookie,
// which is issued on first contact.
func ownerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var owner string
		if id := r.Header.Get("X-User-ID"); id != "" {
			owner = "user:" + id
		} else if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
			owner = "visitor:" + c.Value
		} else {
			visitor := uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    visitor,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			owner = "visitor:" + visitor
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok {
		return owner
	}
	return "anonymous"
}

// rateLimitMiddleware enforces a token bucket per owner. It passes through
// when rps is zero.
func rateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := ownerFrom(r.Context())

			mu.Lock()
			l, ok := limiters[owner]
			if !ok {
				l = rate.NewLimiter(rate.Limit(rps), burst)
				limiters[owner] = l
			}
			mu.Unlock()

			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
