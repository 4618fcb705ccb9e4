// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigil-dev/storefront/internal/mockbackend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/storefront.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateSpec builds the mock backend with every route registered and
// extracts the OpenAPI document huma derives from the wire types. The
// document describes the REST surface the client expects from any backend.
func generateSpec() ([]byte, error) {
	srv, err := mockbackend.New(mockbackend.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, sferr.Errorf(sferr.CodeCLISetupFailure, "creating mock backend: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
