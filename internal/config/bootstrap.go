// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"bytes"
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

//go:embed storefront.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/storefront/storefront.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", sferr.Errorf(sferr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "storefront", "storefront.yaml"), nil
}

// BootstrapConfig writes the default commented config to the default path
// if it does not already exist. Returns the path written, or empty string if
// the file already existed or an error occurred (non-fatal, logged and
// skipped).
func BootstrapConfig(log zerolog.Logger) string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		log.Debug().Err(err).Msg("skipping config bootstrap")
		return ""
	}

	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		log.Debug().Err(err).Str("path", dir).Msg("skipping config bootstrap: cannot create directory")
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		log.Debug().Err(err).Str("path", cfgPath).Msg("skipping config bootstrap: cannot write config")
		return ""
	}

	log.Info().Str("path", cfgPath).Msg("created default config")
	return cfgPath
}

// WriteBaseURL sets api.base_url in the config file at path and keeps every
// other key and comment. A missing file starts from the default config.
func WriteBaseURL(path, baseURL string) error {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = DefaultConfigYAML
	case err != nil:
		return sferr.Errorf(sferr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
	}

	out, err := SetBaseURL(data, baseURL)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return sferr.Errorf(sferr.CodeConfigWriteFailure, "creating config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return sferr.Errorf(sferr.CodeConfigWriteFailure, "writing config to %s: %w", path, err)
	}
	return nil
}

// SetBaseURL returns the YAML document data with api.base_url set.
func SetBaseURL(data []byte, baseURL string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, sferr.Errorf(sferr.CodeConfigParseInvalidFormat, "parsing config: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, sferr.New(sferr.CodeConfigParseInvalidFormat, "config root must be a mapping")
	}

	api := mappingValue(root, "api")
	switch {
	case api == nil:
		api = &yaml.Node{Kind: yaml.MappingNode}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "api"}, api)
	case api.Kind != yaml.MappingNode:
		// "api:" with no value decodes as a null scalar.
		*api = yaml.Node{Kind: yaml.MappingNode}
	}

	if v := mappingValue(api, "base_url"); v != nil {
		v.Kind, v.Tag, v.Value, v.Style = yaml.ScalarNode, "!!str", baseURL, yaml.DoubleQuotedStyle
	} else {
		api.Content = append([]*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "base_url"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: baseURL, Style: yaml.DoubleQuotedStyle},
		}, api.Content...)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, sferr.Errorf(sferr.CodeConfigWriteFailure, "encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, sferr.Errorf(sferr.CodeConfigWriteFailure, "encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
