// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package transport_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/transport"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func TestNormalize_NilUsesFallback(t *testing.T) {
	ne := transport.Normalize(nil, "Failed to load cart")

	require.NotNil(t, ne)
	assert.Equal(t, http.StatusInternalServerError, ne.Status)
	assert.Equal(t, "Failed to load cart", ne.Message)
	assert.Equal(t, transport.KindTransport, ne.Kind)
	assert.False(t, ne.OK())
	assert.True(t, sferr.IsTransport(ne))
}

func TestNormalize_EmptyFallbackUsesDefault(t *testing.T) {
	ne := transport.Normalize(nil, "")
	assert.Equal(t, transport.DefaultFallbackMessage, ne.Message)
}

func TestNormalize_AlreadyNormalizedPassesThrough(t *testing.T) {
	first := transport.Normalize(&transport.ResponseError{StatusCode: 404}, "x")
	assert.Same(t, first, transport.Normalize(first, "y"))
	assert.Same(t, first, transport.Normalize(fmt.Errorf("wrapped: %w", first), "y"))
}

func TestNormalize_ResponseMessagePriority(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "detail string", body: `{"detail":"Product not found","message":"ignored"}`, want: "Product not found"},
		{name: "detail array", body: `{"detail":[{"loc":["body","quantity"],"msg":"field required"}]}`, want: "field required"},
		{name: "message", body: `{"message":"Cart is locked","error":"ignored"}`, want: "Cart is locked"},
		{name: "error string", body: `{"error":"bad session"}`, want: "bad session"},
		{name: "error object", body: `{"error":{"code":"x","message":"nested failure"}}`, want: "nested failure"},
		{name: "no message", body: `{"code":"E1"}`, want: "GET /api/cart failed with status code 400"},
		{name: "empty body", body: ``, want: "GET /api/cart failed with status code 400"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := transport.Normalize(&transport.ResponseError{
				Method:     http.MethodGet,
				Path:       "/api/cart",
				StatusCode: http.StatusBadRequest,
				Body:       []byte(tt.body),
			}, "fallback")

			assert.Equal(t, tt.want, ne.Message)
			assert.Equal(t, http.StatusBadRequest, ne.Status)
			assert.Equal(t, transport.KindClient, ne.Kind)
		})
	}
}

func TestNormalize_StatusAndKind(t *testing.T) {
	tests := []struct {
		status int
		kind   transport.Kind
		check  func(error) bool
	}{
		{status: 401, kind: transport.KindClient, check: sferr.IsUnauthorized},
		{status: 404, kind: transport.KindClient, check: sferr.IsNotFound},
		{status: 409, kind: transport.KindClient, check: sferr.IsConflict},
		{status: 429, kind: transport.KindClient, check: sferr.IsRateExceeded},
		{status: 500, kind: transport.KindTransport, check: sferr.IsTransport},
		{status: 502, kind: transport.KindTransport, check: sferr.IsUpstreamFailure},
		{status: 504, kind: transport.KindTransport, check: sferr.IsTimeout},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			ne := transport.Normalize(&transport.ResponseError{StatusCode: tt.status}, "fallback")
			assert.Equal(t, tt.status, ne.Status)
			assert.Equal(t, tt.kind, ne.Kind)
			assert.True(t, tt.check(ne))
		})
	}
}

func TestNormalize_DetailsHoldDecodedBody(t *testing.T) {
	ne := transport.Normalize(&transport.ResponseError{
		StatusCode: http.StatusNotFound,
		Body:       []byte(`{"detail":"Product not found","product_id":"p-9"}`),
	}, "fallback")

	details, ok := ne.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p-9", details["product_id"])
}

func TestNormalize_NonJSONBodyKeptAsText(t *testing.T) {
	ne := transport.Normalize(&transport.ResponseError{
		Method:     http.MethodGet,
		Path:       "/api/products",
		StatusCode: http.StatusBadGateway,
		Body:       []byte("<html>Bad Gateway</html>\n"),
	}, "fallback")

	assert.Equal(t, "<html>Bad Gateway</html>", ne.Details)
	assert.Equal(t, "GET /api/products failed with status code 502", ne.Message)
}

func TestNormalize_ApplicationFailure(t *testing.T) {
	t.Run("default status", func(t *testing.T) {
		ne := transport.Normalize(&transport.ResponseError{
			StatusCode:  http.StatusOK,
			Body:        []byte(`{"success":false,"message":"Out of stock"}`),
			Application: true,
		}, "fallback")

		assert.Equal(t, http.StatusUnprocessableEntity, ne.Status)
		assert.Equal(t, "Out of stock", ne.Message)
		assert.Equal(t, transport.KindApplication, ne.Kind)
		assert.Equal(t, sferr.CodeApplicationResponseFailure, sferr.CodeOf(ne))
	})

	t.Run("body status", func(t *testing.T) {
		ne := transport.Normalize(&transport.ResponseError{
			StatusCode:  http.StatusOK,
			Body:        []byte(`{"ok":false,"status":409,"error":"Already checked out"}`),
			Application: true,
		}, "fallback")

		assert.Equal(t, http.StatusConflict, ne.Status)
		assert.Equal(t, "Already checked out", ne.Message)
		assert.Equal(t, transport.KindApplication, ne.Kind)
	})
}

func TestNormalize_PlainErrors(t *testing.T) {
	t.Run("generic", func(t *testing.T) {
		cause := errors.New("connection reset by peer")
		ne := transport.Normalize(cause, "fallback")

		assert.Equal(t, http.StatusInternalServerError, ne.Status)
		assert.Equal(t, "connection reset by peer", ne.Message)
		assert.Equal(t, transport.KindTransport, ne.Kind)
		assert.ErrorIs(t, ne, cause)
	})

	t.Run("deadline", func(t *testing.T) {
		ne := transport.Normalize(fmt.Errorf("GET /api/cart: %w", context.DeadlineExceeded), "fallback")

		assert.Equal(t, http.StatusInternalServerError, ne.Status)
		assert.True(t, sferr.IsTimeout(ne))
		assert.ErrorIs(t, ne, context.DeadlineExceeded)
	})

	t.Run("coded", func(t *testing.T) {
		ne := transport.Normalize(sferr.New(sferr.CodeCartQuantityInvalid, "quantity must not be negative"), "fallback")

		assert.Equal(t, http.StatusBadRequest, ne.Status)
		assert.Equal(t, transport.KindClient, ne.Kind)
		assert.True(t, sferr.IsInvalidInput(ne))
	})

	t.Run("coded transport", func(t *testing.T) {
		ne := transport.Normalize(sferr.New(sferr.CodeTransportResponseInvalid, "invalid response body"), "fallback")

		assert.Equal(t, http.StatusInternalServerError, ne.Status)
		assert.Equal(t, transport.KindTransport, ne.Kind)
		assert.Equal(t, sferr.CodeTransportResponseInvalid, sferr.CodeOf(ne))
	})
}

func TestNormalize_ArbitraryValues(t *testing.T) {
	t.Run("string", func(t *testing.T) {
		assert.Equal(t, "socket hang up", transport.Normalize("socket hang up", "fallback").Message)
	})

	t.Run("map with message", func(t *testing.T) {
		ne := transport.Normalize(map[string]any{"message": "from map"}, "fallback")
		assert.Equal(t, "from map", ne.Message)
	})

	t.Run("struct", func(t *testing.T) {
		v := struct{ N int }{N: 3}
		ne := transport.Normalize(v, "fallback")
		assert.Equal(t, "fallback", ne.Message)
		assert.Equal(t, v, ne.Details)
		assert.Equal(t, http.StatusInternalServerError, ne.Status)
	})

	t.Run("typed nil", func(t *testing.T) {
		var ne *transport.NormalizedError
		got := transport.Normalize(ne, "fallback")
		require.NotNil(t, got)
		assert.Equal(t, "fallback", got.Message)
	})
}
