// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sigil-dev/storefront/internal/config"
	"github.com/sigil-dev/storefront/internal/logging"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

// cli carries what PersistentPreRunE resolves to every subcommand.
type cli struct {
	v      *viper.Viper
	cfg    *config.Config
	log    zerolog.Logger
	errOut io.Writer
}

// NewRootCmd creates the root storefront command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront client: catalog, cart and shopping assistant",
		Long:          "storefront talks to a storefront backend: browse products, manage the cart, check out and chat with the shopping assistant.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	// Global flags. These map to viper keys in setup.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("api-url", "", "backend base URL (overrides config and build default)")
	root.PersistentFlags().StringP("output", "o", string(formatTable), "output format: table, json or yaml")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	root.PersistentFlags().String("metrics-listen", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newProductsCmd(c),
		newCartCmd(c),
		newChatCmd(c),
		newSessionCmd(c),
		newAuthCmd(c),
		newInitCmd(c),
		newMockBackendCmd(c),
		newVersionCmd(),
	)

	return root
}

// setup configures viper with defaults, env bindings, flag bindings and an
// optional config file so the standard precedence (flag > env > file >
// defaults) is handled uniformly.
func (c *cli) setup(cmd *cobra.Command) error {
	v := c.v

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return sferr.Errorf(sferr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted so viper never matches the storefront
		// binary itself as an extensionless config file.
		v.SetConfigName("storefront")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/storefront")
		// No config file is fine. Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return sferr.Errorf(sferr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(c.log); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return sferr.Errorf(sferr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("api.base_url", cmd.Root().PersistentFlags().Lookup("api-url")); err != nil {
		return sferr.Errorf(sferr.CodeCLISetupFailure, "binding api-url flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return sferr.Errorf(sferr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}
	if err := v.BindPFlag("metrics.listen", cmd.Root().PersistentFlags().Lookup("metrics-listen")); err != nil {
		return sferr.Errorf(sferr.CodeCLISetupFailure, "binding metrics-listen flag: %w", err)
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.errOut = cmd.ErrOrStderr()

	level := cfg.Log.Level
	if v.GetBool("verbose") {
		level = "debug"
	}
	c.log = logging.New(logging.Config{Level: level, Pretty: cfg.Log.Pretty, Output: cmd.ErrOrStderr()})
	config.WarnInsecurePermissions(c.log, v.ConfigFileUsed())

	return nil
}

// commandContext bounds a non-interactive command by commandTimeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parentContext(cmd), commandTimeout)
}

func parentContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// wrapRequest adds command context to a failed request. The original code is
// kept so that a 401 still reads as unauthorized at the top level.
func wrapRequest(err error, msg string, fields ...sferr.Attr) error {
	code := sferr.CodeOf(err)
	if code == "" {
		code = sferr.CodeCLIRequestFailure
	}
	return sferr.Wrap(err, code, msg, fields...)
}
