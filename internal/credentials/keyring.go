// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package credentials keeps auth headers for a backend in the OS keyring so
// they can be fed to transport.Credentials on the next start.
package credentials

import (
	"encoding/json"
	"errors"

	"github.com/zalando/go-keyring"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// DefaultService is the keyring service name entries are stored under.
const DefaultService = "storefront"

// Bundle is what gets stored per backend.
type Bundle struct {
	Headers map[string]string `json:"headers,omitempty"`
	UserID  string            `json:"user_id,omitempty"`
}

// Empty reports whether the bundle carries nothing worth sending.
func (b Bundle) Empty() bool {
	return len(b.Headers) == 0 && b.UserID == ""
}

// KeyringStore stores one Bundle per account (normally the backend base
// URL). On macOS it uses Keychain, on Linux secret-service (D-Bus), and on
// Windows the Credential Manager.
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Save(account string, b Bundle) error {
	if account == "" {
		return sferr.New(sferr.CodeCredentialInvalidInput, "credential store: account must not be empty")
	}
	if b.Empty() {
		return sferr.New(sferr.CodeCredentialInvalidInput, "credential store: nothing to store")
	}

	data, err := json.Marshal(b)
	if err != nil {
		return sferr.Wrapf(err, sferr.CodeCredentialStoreFailure, "encoding credentials for %s", account)
	}
	if err := keyring.Set(s.service, account, string(data)); err != nil {
		return sferr.Wrapf(err, sferr.CodeCredentialStoreFailure, "storing credentials for %s", account)
	}
	return nil
}

func (s *KeyringStore) Load(account string) (Bundle, error) {
	if account == "" {
		return Bundle{}, sferr.New(sferr.CodeCredentialInvalidInput, "credential load: account must not be empty")
	}

	raw, err := keyring.Get(s.service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Bundle{}, sferr.Errorf(sferr.CodeCredentialNotFound, "no credentials stored for %s", account)
		}
		return Bundle{}, sferr.Wrapf(err, sferr.CodeCredentialStoreFailure, "loading credentials for %s", account)
	}

	var b Bundle
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Bundle{}, sferr.Wrapf(err, sferr.CodeCredentialStoreFailure, "decoding credentials for %s", account)
	}
	return b, nil
}

func (s *KeyringStore) Delete(account string) error {
	if account == "" {
		return sferr.New(sferr.CodeCredentialInvalidInput, "credential delete: account must not be empty")
	}

	if err := keyring.Delete(s.service, account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return sferr.Errorf(sferr.CodeCredentialNotFound, "no credentials stored for %s", account)
		}
		return sferr.Wrapf(err, sferr.CodeCredentialDeleteFailure, "deleting credentials for %s", account)
	}
	return nil
}
