// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build windows

package config

import "github.com/rs/zerolog"

// WarnInsecurePermissions is a no-op on Windows.
// Windows uses ACLs rather than Unix mode bits, so this check is not applicable.
func WarnInsecurePermissions(log zerolog.Logger, path string) {
	if path != "" {
		log.Debug().Str("path", path).Msg("config permission check not implemented on Windows")
	}
}
