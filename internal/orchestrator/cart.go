// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sigil-dev/storefront/internal/backend"
	"github.com/sigil-dev/storefront/internal/cart"
	"github.com/sigil-dev/storefront/internal/dedup"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

const (
	opProducts = "catalog.list"
	opCart     = "cart.fetch"
	opAdd      = "cart.add"
	opUpdate   = "cart.update"
	opRemove   = "cart.remove"
	opCheckout = "cart.checkout"
)

// FetchProducts returns the catalog. Products are not cached.
func (o *Orchestrator) FetchProducts(ctx context.Context) ([]cart.Product, error) {
	products, err := read(ctx, o, keyProducts, opProducts, o.backend.ListProducts)
	if err != nil {
		return nil, o.readFailed(opProducts, err)
	}
	return cart.ProductsFromWire(products), nil
}

// FetchCart replaces the local cart with the server's copy. On failure the
// items already loaded stay.
func (o *Orchestrator) FetchCart(ctx context.Context) (cart.State, error) {
	c, err := read(ctx, o, keyCart, opCart, o.backend.GetCart)
	if err != nil {
		o.cart.Dispatch(cart.LoadFailed{Err: err})
		return o.cart.Snapshot(), o.readFailed(opCart, err)
	}
	return o.cart.Dispatch(cart.LoadedFromWire(c)), nil
}

// AddToCart adds quantity units of a product, then refetches the cart.
// Every call carries a fresh nonce in its dedup key, so two concurrent adds
// of the same product and quantity are two separate intents and both reach
// the server.
func (o *Orchestrator) AddToCart(ctx context.Context, productID string, quantity int) (cart.State, error) {
	if err := cart.ValidateProductID(productID); err != nil {
		return o.cartMutationFailed(opAdd, productID, err)
	}
	if quantity < 1 {
		return o.cartMutationFailed(opAdd, productID, sferr.New(sferr.CodeCartQuantityInvalid,
			"quantity must be at least 1", sferr.FieldProductID(productID), sferr.Field("quantity", quantity)))
	}

	key := fmt.Sprintf("%s%s:%d:%s", prefixCartAdd, productID, quantity, o.newID())
	_, err := dedup.Do(ctx, o.group, key, func(ctx context.Context) (backend.Cart, error) {
		return o.backend.AddCartItem(ctx, productID, quantity)
	})
	if err != nil {
		return o.cartMutationFailed(opAdd, productID, err)
	}
	return o.refetchCart(ctx)
}

// UpdateCartItem sets the quantity of a cart line, then refetches the cart.
// Quantity zero removes the line.
func (o *Orchestrator) UpdateCartItem(ctx context.Context, productID string, quantity int) (cart.State, error) {
	if err := cart.ValidateProductID(productID); err != nil {
		return o.cartMutationFailed(opUpdate, productID, err)
	}
	if err := cart.ValidateQuantity(quantity); err != nil {
		return o.cartMutationFailed(opUpdate, productID, err)
	}
	if quantity == 0 {
		return o.RemoveFromCart(ctx, productID)
	}

	if _, err := o.backend.UpdateCartItem(ctx, productID, quantity); err != nil {
		return o.cartMutationFailed(opUpdate, productID, err)
	}
	return o.refetchCart(ctx)
}

// RemoveFromCart removes a cart line, then refetches the cart.
func (o *Orchestrator) RemoveFromCart(ctx context.Context, productID string) (cart.State, error) {
	if err := cart.ValidateProductID(productID); err != nil {
		return o.cartMutationFailed(opRemove, productID, err)
	}
	if _, err := o.backend.RemoveCartItem(ctx, productID); err != nil {
		return o.cartMutationFailed(opRemove, productID, err)
	}
	return o.refetchCart(ctx)
}

// QueueQuantityUpdate schedules a quantity change for rapid input such as a
// stepper. The first change for a product is sent at once; changes within
// the throttle interval are coalesced and the latest one is always sent
// when the interval ends. Failures are reported through the Notifier.
func (o *Orchestrator) QueueQuantityUpdate(productID string, quantity int) error {
	if err := cart.ValidateProductID(productID); err != nil {
		_, err = o.cartMutationFailed(opUpdate, productID, err)
		return err
	}
	if err := cart.ValidateQuantity(quantity); err != nil {
		_, err = o.cartMutationFailed(opUpdate, productID, err)
		return err
	}
	if !o.quantities.Call(productID, quantity) {
		return sferr.New(sferr.CodeClientRequestInvalid, "orchestrator is closed", sferr.FieldProductID(productID))
	}
	return nil
}

func (o *Orchestrator) applyQueuedQuantity(productID string, quantity int) {
	// Errors are already reported by UpdateCartItem.
	_, _ = o.UpdateCartItem(o.ctx, productID, quantity)
}

// Checkout places the order for the current cart. It is never retried and
// concurrent calls share one request. The idempotency key is tied to the
// cart contents: calling again after an ambiguous failure resends the same
// key, so the server places the order at most once. A changed cart or a
// placed order starts a new key. The cart is refetched after a successful
// order.
func (o *Orchestrator) Checkout(ctx context.Context) (cart.Order, error) {
	st := o.cart.Snapshot()
	if st.Loaded && st.Empty() {
		err := sferr.New(sferr.CodeCartCheckoutEmpty, "cart is empty")
		o.cart.Dispatch(cart.MutationFailed{Err: err})
		return cart.Order{}, o.mutationFailed(opCheckout, err)
	}

	key := o.checkoutKey(st)
	order, err := dedup.Do(ctx, o.group, keyCheckout, func(ctx context.Context) (backend.Order, error) {
		return o.backend.Checkout(ctx, key)
	})
	if err != nil {
		o.cart.Dispatch(cart.MutationFailed{Err: err})
		return cart.Order{}, o.mutationFailed(opCheckout, err)
	}

	o.clearCheckoutKey(key)
	placed := cart.OrderFromWire(order)
	o.cart.Dispatch(cart.CheckedOut{Order: placed})
	o.log.Info().Str("order_number", placed.OrderNumber).Float64("total", placed.Total).Msg("order placed")

	// A failed refetch is reported on its own and does not undo the order.
	_, _ = o.refetchCart(ctx)
	return placed, nil
}

// checkoutKey returns the idempotency key for the cart contents in st,
// minting one when the contents differ from the last attempt.
func (o *Orchestrator) checkoutKey(st cart.State) string {
	fp := cartFingerprint(st)

	o.checkoutMu.Lock()
	defer o.checkoutMu.Unlock()
	if o.checkout.key == "" || o.checkout.cart != fp {
		o.checkout.key = o.newID()
		o.checkout.cart = fp
	}
	return o.checkout.key
}

func (o *Orchestrator) clearCheckoutKey(key string) {
	o.checkoutMu.Lock()
	defer o.checkoutMu.Unlock()
	if o.checkout.key == key {
		o.checkout.key = ""
		o.checkout.cart = ""
	}
}

// cartFingerprint identifies the cart contents independent of line order.
func cartFingerprint(st cart.State) string {
	if !st.Loaded {
		return ""
	}
	lines := make([]string, 0, len(st.Items))
	for _, it := range st.Items {
		lines = append(lines, fmt.Sprintf("%s:%d", it.ProductID, it.Quantity))
	}
	slices.Sort(lines)
	return strings.Join(lines, ",")
}

// refetchCart loads the cart after a mutation. A GET that started before
// the mutation may still be in flight; it is forgotten so the refetch sees
// the mutation.
func (o *Orchestrator) refetchCart(ctx context.Context) (cart.State, error) {
	o.group.Forget(keyCart)
	return o.FetchCart(ctx)
}

// Cart returns the current cart state.
func (o *Orchestrator) Cart() cart.State {
	return o.cart.Snapshot()
}

func (o *Orchestrator) cartMutationFailed(operation, productID string, err error) (cart.State, error) {
	st := o.cart.Dispatch(cart.MutationFailed{ProductID: productID, Err: err})
	return st, o.mutationFailed(operation, err)
}
