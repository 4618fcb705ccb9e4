// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/config"
	"github.com/sigil-dev/storefront/internal/credentials"
	"github.com/sigil-dev/storefront/internal/mockbackend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newTestInitModel() initModel {
	return newInitModel(nil, "/tmp/storefront.yaml", "http://localhost:8000")
}

func TestInitModel_InitialState(t *testing.T) {
	m := newTestInitModel()
	assert.Equal(t, stepURL, m.step)
	assert.Equal(t, "http://localhost:8000", m.urlInput.Value())
	assert.Empty(t, m.validationErr)
}

func TestInitModel_EnterURL_TransitionsToToken(t *testing.T) {
	m := newTestInitModel()
	m.urlInput.SetValue("https://shop.example.com/")

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := m2.(initModel)
	assert.Equal(t, stepToken, result.step)
	assert.Equal(t, "https://shop.example.com", result.result.BaseURL)
}

func TestInitModel_EmptyURL_UsesFallback(t *testing.T) {
	m := newTestInitModel()
	m.urlInput.SetValue("")

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, config.FallbackAPIBaseURL, m2.(initModel).result.BaseURL)
}

func TestInitModel_InvalidURL_ShowsError(t *testing.T) {
	for _, raw := range []string{"ftp://shop.example.com", "shop.example.com", "http://"} {
		t.Run(raw, func(t *testing.T) {
			m := newTestInitModel()
			m.urlInput.SetValue(raw)

			m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
			result := m2.(initModel)
			assert.Equal(t, stepURL, result.step)
			assert.NotEmpty(t, result.validationErr)
		})
	}
}

func TestInitModel_TypingUpdatesInput(t *testing.T) {
	m := newTestInitModel()
	m.urlInput.SetValue("")

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("http://x")})
	assert.Equal(t, "http://x", m2.(initModel).urlInput.Value())
}

func TestInitModel_EscOnToken_GoesBack(t *testing.T) {
	m := newTestInitModel()
	m.step = stepToken
	m.validationErr = "stale"

	m2, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	result := m2.(initModel)
	assert.Equal(t, stepURL, result.step)
	assert.Empty(t, result.validationErr)
}

func TestInitModel_EnterToken_StartsValidation(t *testing.T) {
	m := newTestInitModel()
	m.step = stepToken
	m.result.BaseURL = "http://localhost:8000"
	m.tokenInput.SetValue("  tok  ")

	m2, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := m2.(initModel)
	assert.Equal(t, stepValidate, result.step)
	assert.Equal(t, "tok", result.result.Token)
	assert.NotNil(t, cmd)
}

func TestInitModel_ValidationError_ReturnsToTheRightStep(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want initWizardStep
	}{
		{"rejected token", sferr.New(sferr.CodeClientAuthUnauthorized, "backend rejected the token"), stepToken},
		{"unreachable", sferr.New(sferr.CodeTransportRequestFailure, "connection refused"), stepURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestInitModel()
			m.step = stepValidate

			m2, _ := m.Update(validationErrorMsg{err: tt.err})
			result := m2.(initModel)
			assert.Equal(t, tt.want, result.step)
			assert.Contains(t, result.validationErr, tt.err.Error())
		})
	}
}

func TestInitModel_ValidationSuccess_WritesConfig(t *testing.T) {
	m := newTestInitModel()
	m.step = stepValidate

	_, cmd := m.Update(validationSuccessMsg{})
	assert.NotNil(t, cmd)
}

func TestInitModel_ConfigWritten_TransitionsToDone(t *testing.T) {
	m := newTestInitModel()
	m.step = stepValidate

	m2, _ := m.Update(configWrittenMsg{path: "/tmp/storefront.yaml"})
	fm := m2.(initModel)
	assert.Equal(t, stepDone, fm.step)
	assert.Equal(t, "/tmp/storefront.yaml", fm.configPath)
}

func TestInitModel_Error_IsTerminal(t *testing.T) {
	m := newTestInitModel()
	m.step = stepValidate

	m2, _ := m.Update(sferr.New(sferr.CodeConfigWriteFailure, "disk full"))
	fm := m2.(initModel)
	assert.Equal(t, stepError, fm.step)
	assert.Contains(t, fm.View(), "disk full")
}

func TestInitModel_View_ContainsExpectedContent(t *testing.T) {
	tests := []struct {
		name string
		step initWizardStep
		want []string
	}{
		{"url step", stepURL, []string{"Step 1/2", "Backend URL"}},
		{"token step", stepToken, []string{"Step 2/2", "esc to go back"}},
		{"validate step", stepValidate, []string{"Checking"}},
		{"done step", stepDone, []string{"Setup complete", "storefront products", "storefront chat"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestInitModel()
			m.step = tt.step
			view := m.View()
			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
		})
	}
}

func TestValidateBackend(t *testing.T) {
	env := newCLIEnv(t, mockbackend.Config{AuthToken: "secret"})
	ctx := context.Background()

	require.NoError(t, validateBackend(ctx, initResult{BaseURL: env.url}), "health alone needs no token")
	require.NoError(t, validateBackend(ctx, initResult{BaseURL: env.url, Token: "secret"}))

	err := validateBackend(ctx, initResult{BaseURL: env.url, Token: "wrong"})
	require.Error(t, err)
	assert.True(t, sferr.IsUnauthorized(err))

	err = validateBackend(ctx, initResult{BaseURL: "http://127.0.0.1:1"})
	require.Error(t, err)
	assert.False(t, sferr.IsUnauthorized(err))
}

func TestSaveInitResult_MergesStoredCredentials(t *testing.T) {
	store := &memCredentialStore{data: map[string]credentials.Bundle{
		"http://shop.test": {Headers: map[string]string{"X-Tenant": "acme"}, UserID: "u-1"},
	}}
	cfgPath := filepath.Join(t.TempDir(), "storefront.yaml")

	err := saveInitResult(initResult{BaseURL: "http://shop.test", Token: "tok"}, store, cfgPath)
	require.NoError(t, err)

	b, err := store.Load("http://shop.test")
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", b.Headers["Authorization"])
	assert.Equal(t, "acme", b.Headers["X-Tenant"])
	assert.Equal(t, "u-1", b.UserID)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "http://shop.test", cfg.API.BaseURL)
}

func TestSaveInitResult_NoTokenLeavesKeyringAlone(t *testing.T) {
	store := &memCredentialStore{data: map[string]credentials.Bundle{}}
	cfgPath := filepath.Join(t.TempDir(), "storefront.yaml")

	require.NoError(t, saveInitResult(initResult{BaseURL: "http://shop.test"}, store, cfgPath))
	assert.Empty(t, store.data)
	assert.FileExists(t, cfgPath)
}

func TestInitCommand_NonInteractive(t *testing.T) {
	env := newCLIEnv(t, mockbackend.Config{AuthToken: "secret"})

	out, _, err := env.run(t, "", "init", "--url", env.url+"/", "--token", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Storefront configured for "+env.url)

	b, err := env.creds.Load(env.url)
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", b.Headers["Authorization"])

	cfgPath, err := config.DefaultConfigPath()
	require.NoError(t, err)
	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `base_url: "`+env.url+`"`)

	// The stored token is picked up by later commands.
	_, _, err = env.run(t, "", "cart", "show")
	require.NoError(t, err)
}

func TestInitCommand_RejectedTokenWritesNothing(t *testing.T) {
	env := newCLIEnv(t, mockbackend.Config{AuthToken: "secret"})

	_, _, err := env.run(t, "", "init", "--url", env.url, "--token", "wrong")
	require.Error(t, err)
	assert.True(t, sferr.IsUnauthorized(err))

	_, err = env.creds.Load(env.url)
	assert.True(t, sferr.HasCode(err, sferr.CodeCredentialNotFound))
}

func TestInitCommand_RequiresTerminalWithoutURL(t *testing.T) {
	env := newCLIEnv(t, mockbackend.Config{})

	_, errOut, err := env.run(t, "", "init")
	require.Error(t, err)
	assert.Contains(t, errOut, "interactive terminal")
}
