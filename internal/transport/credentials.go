// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package transport

import (
	"net/http"
	"strings"
	"sync/atomic"
)

// HeaderUserID carries the locally known user identifier.
const HeaderUserID = "X-User-ID"

// Credentials is the auxiliary auth state injected into every request. It is
// created once and handed to the Client at construction. SetAuthHeaders and
// SetUserID are its only writers; each write swaps the whole value, so
// readers never observe a partially updated map.
type Credentials struct {
	headers atomic.Pointer[http.Header]
	userID  atomic.Pointer[string]
}

// NewCredentials returns empty credentials.
func NewCredentials() *Credentials {
	return &Credentials{}
}

// SetAuthHeaders replaces the cached auth headers. Nil or empty clears them.
// Headers stay valid until the next call.
func (c *Credentials) SetAuthHeaders(headers map[string]string) {
	if len(headers) == 0 {
		c.headers.Store(nil)
		return
	}
	h := make(http.Header, len(headers))
	for k, v := range headers {
		if strings.TrimSpace(k) == "" {
			continue
		}
		h.Set(k, v)
	}
	c.headers.Store(&h)
}

// AuthHeaders returns a copy of the cached auth headers.
func (c *Credentials) AuthHeaders() http.Header {
	h := c.headers.Load()
	if h == nil {
		return http.Header{}
	}
	return h.Clone()
}

// SetUserID replaces the user identifier sent in HeaderUserID.
func (c *Credentials) SetUserID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		c.userID.Store(nil)
		return
	}
	c.userID.Store(&id)
}

func (c *Credentials) UserID() string {
	if id := c.userID.Load(); id != nil {
		return *id
	}
	return ""
}

// apply adds the cached headers to req without overwriting anything the
// caller set explicitly.
func (c *Credentials) apply(req *http.Request) {
	if c == nil {
		return
	}
	if h := c.headers.Load(); h != nil {
		for k, vs := range *h {
			if _, set := req.Header[k]; set {
				continue
			}
			req.Header[k] = append([]string(nil), vs...)
		}
	}
	if id := c.UserID(); id != "" && req.Header.Get(HeaderUserID) == "" {
		req.Header.Set(HeaderUserID, id)
	}
}
