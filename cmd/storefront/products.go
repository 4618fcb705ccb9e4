// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"github.com/spf13/cobra"
)

func newProductsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "products",
		Aliases: []string{"catalog"},
		Short:   "List the product catalog",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				products, err := app.Orchestrator.FetchProducts(ctx)
				if err != nil {
					return wrapRequest(err, "listing products")
				}
				return renderProducts(cmd, products)
			})
		},
	}
}
