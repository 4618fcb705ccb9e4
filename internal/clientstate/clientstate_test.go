// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package clientstate_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/clientstate"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func TestMemoryStore_GetSaveClear(t *testing.T) {
	ctx := context.Background()
	st := clientstate.NewMemoryStore()
	defer st.Close()

	_, found, err := st.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, st.Save(ctx, clientstate.KeyCurrentSession, "s1"))
	require.NoError(t, st.Save(ctx, clientstate.KeyCurrentSession, "s2"))

	v, found, err := st.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "s2", v)

	require.NoError(t, st.Clear(ctx, clientstate.KeyCurrentSession))
	require.NoError(t, st.Clear(ctx, clientstate.KeyCurrentSession))
	_, found, err = st.Get(ctx, clientstate.KeyCurrentSession)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStore_RejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	st := clientstate.NewMemoryStore()

	err := st.Save(ctx, " ", "x")
	require.Error(t, err)
	assert.True(t, sferr.HasCode(err, sferr.CodeStateStoreInvalidKey))

	_, _, err = st.Get(ctx, "")
	assert.Error(t, err)
	assert.Error(t, st.Clear(ctx, ""))
}

func TestOpen(t *testing.T) {
	st, err := clientstate.Open("", "")
	require.NoError(t, err)
	assert.IsType(t, &clientstate.MemoryStore{}, st)

	st, err = clientstate.Open("sqlite", "")
	require.NoError(t, err)
	assert.IsType(t, &clientstate.MemoryStore{}, st, "no path falls back to memory")

	_, err = clientstate.Open("redis", "/tmp/x")
	require.Error(t, err)
	assert.True(t, sferr.HasCode(err, sferr.CodeStateStoreOpenFailure))
}
