// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

//go:build !windows

package config

import (
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// WarnInsecurePermissions logs a warning when the config file is group- or
// world-readable. It may hold auth.token, so this does not fail startup but
// tells the operator the token may be exposed to other users.
func WarnInsecurePermissions(log zerolog.Logger, path string) {
	if path == "" {
		// No config file loaded (using defaults only). Nothing to check.
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("could not stat config file for permission check")
		return
	}

	mode := info.Mode()
	perm := mode.Perm()

	const groupRead fs.FileMode = 0o040
	const otherRead fs.FileMode = 0o004

	if perm&(groupRead|otherRead) != 0 {
		log.Warn().
			Str("path", path).
			Str("mode", mode.String()).
			Str("recommended", "0600").
			Msg("config file has insecure permissions, auth token may be exposed to other users")
	}
}
