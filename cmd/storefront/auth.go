// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigil-dev/storefront/internal/credentials"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newAuthCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage backend credentials stored in the OS keyring",
		Long:  "Store or remove the auth headers and user id sent to the configured backend. Entries are keyed by backend URL.",
	}

	cmd.AddCommand(
		newAuthLoginCmd(c),
		newAuthLogoutCmd(c),
	)

	return cmd
}

func newAuthLoginCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials for the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, _ := cmd.Flags().GetString("token")
			rawHeaders, _ := cmd.Flags().GetStringArray("header")
			userID, _ := cmd.Flags().GetString("user-id")

			headers, err := parseHeaders(rawHeaders)
			if err != nil {
				return err
			}
			if token != "" {
				headers["Authorization"] = "Bearer " + token
			}
			bundle := credentials.Bundle{Headers: headers, UserID: strings.TrimSpace(userID)}
			if bundle.Empty() {
				return sferr.New(sferr.CodeCLIInputInvalid, "nothing to store: pass --token, --header or --user-id")
			}

			if err := credentialStoreFactory().Save(c.cfg.API.BaseURL, bundle); err != nil {
				return wrapRequest(err, "storing credentials")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Credentials stored for "+c.cfg.API.BaseURL))
			return err
		},
	}

	cmd.Flags().String("token", "", "bearer token sent as the Authorization header")
	cmd.Flags().StringArray("header", nil, "extra auth header as key=value (repeatable)")
	cmd.Flags().String("user-id", "", "user id sent as X-User-ID")

	return cmd
}

func newAuthLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials for the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := credentialStoreFactory().Delete(c.cfg.API.BaseURL)
			if err != nil && !sferr.HasCode(err, sferr.CodeCredentialNotFound) {
				return wrapRequest(err, "removing credentials")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed for "+c.cfg.API.BaseURL)
			return err
		},
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw)+1)
	for _, kv := range raw {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, sferr.Errorf(sferr.CodeCLIInputInvalid, "header %q must be key=value", kv)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers, nil
}
