// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigil-dev/storefront/internal/config"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func TestWriteBaseURL_NewFileStartsFromDefault(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "storefront.yaml")

	require.NoError(t, config.WriteBaseURL(cfgPath, "https://shop.example.com"))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(cfgPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestWriteBaseURL_KeepsOtherSettings(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "storefront.yaml")
	existing := `api:
  base_url: "http://old.example.com"
  timeout: 10s # short on purpose
log:
  level: debug
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(existing), 0o600))

	require.NoError(t, config.WriteBaseURL(cfgPath, "http://new.example.com"))

	raw, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# short on purpose")
	assert.NotContains(t, string(raw), "old.example.com")

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "http://new.example.com", cfg.API.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "10s", cfg.API.Timeout.String())
}

func TestSetBaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty document", ""},
		{"no api section", "log:\n  level: info\n"},
		{"null api section", "api:\n"},
		{"commented default", string(config.DefaultConfigYAML)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := config.SetBaseURL([]byte(tt.in), "http://localhost:9000")
			require.NoError(t, err)
			assert.Contains(t, string(out), `base_url: "http://localhost:9000"`)
		})
	}
}

func TestSetBaseURL_RejectsNonMapping(t *testing.T) {
	_, err := config.SetBaseURL([]byte("- one\n- two\n"), "http://localhost:9000")
	require.Error(t, err)
	assert.True(t, sferr.HasCode(err, sferr.CodeConfigParseInvalidFormat))
}
