// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"strconv"

	"github.com/spf13/cobra"

	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func newCartCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the shopping cart",
		Long:  "Show the cart, add, update or remove items, and check out.",
	}

	cmd.AddCommand(
		newCartShowCmd(c),
		newCartAddCmd(c),
		newCartUpdateCmd(c),
		newCartRemoveCmd(c),
		newCartCheckoutCmd(c),
	)

	return cmd
}

func newCartShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				state, err := app.Orchestrator.FetchCart(ctx)
				if err != nil {
					return wrapRequest(err, "fetching cart")
				}
				return renderCart(cmd, state)
			})
		},
	}
}

func newCartAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, _ := cmd.Flags().GetInt("quantity")
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				state, err := app.Orchestrator.AddToCart(ctx, args[0], qty)
				if err != nil {
					return wrapRequest(err, "adding to cart", sferr.FieldProductID(args[0]))
				}
				return renderCart(cmd, state)
			})
		},
	}

	cmd.Flags().IntP("quantity", "q", 1, "quantity to add")

	return cmd
}

func newCartUpdateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart item (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return sferr.Errorf(sferr.CodeCLIInputInvalid, "quantity %q is not a number", args[1])
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				state, err := app.Orchestrator.UpdateCartItem(ctx, args[0], qty)
				if err != nil {
					return wrapRequest(err, "updating cart", sferr.FieldProductID(args[0]))
				}
				return renderCart(cmd, state)
			})
		},
	}
}

func newCartRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <product-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a product from the cart",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				state, err := app.Orchestrator.RemoveFromCart(ctx, args[0])
				if err != nil {
					return wrapRequest(err, "removing from cart", sferr.FieldProductID(args[0]))
				}
				return renderCart(cmd, state)
			})
		},
	}
}

func newCartCheckoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			return c.withApp(ctx, func(app *App) error {
				// Load first so an empty cart is rejected without a request.
				if _, err := app.Orchestrator.FetchCart(ctx); err != nil {
					return wrapRequest(err, "fetching cart")
				}
				order, err := app.Orchestrator.Checkout(ctx)
				if err != nil {
					return wrapRequest(err, "checking out")
				}
				return renderOrder(cmd, order)
			})
		},
	}
}
