// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarnInsecurePermissions(t *testing.T) {
	tests := []struct {
		name       string
		perm       os.FileMode
		expectWarn bool
	}{
		{name: "secure 0600", perm: 0o600, expectWarn: false},
		{name: "secure 0400", perm: 0o400, expectWarn: false},
		{name: "insecure 0644 (group readable)", perm: 0o644, expectWarn: true},
		{name: "insecure 0604 (other readable)", perm: 0o604, expectWarn: true},
		{name: "insecure 0640 (group readable)", perm: 0o640, expectWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "storefront.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte("log:\n  level: info\n"), tt.perm))

			var buf bytes.Buffer
			WarnInsecurePermissions(zerolog.New(&buf).Level(zerolog.DebugLevel), configPath)

			logOutput := buf.String()
			if tt.expectWarn {
				assert.Contains(t, logOutput, "insecure permissions")
				assert.Contains(t, logOutput, configPath)
				assert.Contains(t, logOutput, "0600")
			} else {
				assert.NotContains(t, logOutput, "insecure permissions")
			}
		})
	}
}

func TestWarnInsecurePermissions_EmptyPath(t *testing.T) {
	var buf bytes.Buffer
	WarnInsecurePermissions(zerolog.New(&buf).Level(zerolog.DebugLevel), "")
	assert.Empty(t, buf.String(), "expected no log output for empty path")
}

func TestWarnInsecurePermissions_MissingFile(t *testing.T) {
	var buf bytes.Buffer
	WarnInsecurePermissions(zerolog.New(&buf).Level(zerolog.DebugLevel), "/nonexistent/path/storefront.yaml")

	logOutput := buf.String()
	assert.Contains(t, logOutput, "could not stat")
	assert.Contains(t, logOutput, `"level":"debug"`)
	assert.NotContains(t, logOutput, "insecure permissions")
}
