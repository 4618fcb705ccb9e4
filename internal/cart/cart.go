// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package cart holds the shopping cart as last reported by the server. The
// cart is never merged optimistically: every mutation is followed by a full
// refetch whose result is fed to Reduce as Loaded.
package cart

import (
	"strings"

	"github.com/sigil-dev/storefront/internal/backend"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

type Product struct {
	ID          string
	Name        string
	Description string
	Price       float64
	ImageURL    string
	Category    string
	Stock       int
}

// Item is one cart line. Quantity is always positive; a zero quantity
// removes the line.
type Item struct {
	ProductID string
	Quantity  int
	Product   *Product
}

// Subtotal is the line price when the product is known.
func (i Item) Subtotal() float64 {
	if i.Product == nil {
		return 0
	}
	return i.Product.Price * float64(i.Quantity)
}

type Order struct {
	OrderNumber string
	Total       float64
}

// State is the cart state. Values returned by Reduce share backing storage
// with their predecessor and must be treated as read-only.
type State struct {
	Items     []Item
	Total     float64
	Loaded    bool
	LastOrder *Order
	LastError error
}

// Item returns the line for productID.
func (s State) Item(productID string) (Item, bool) {
	for _, it := range s.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Count is the total number of units in the cart.
func (s State) Count() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

func (s State) Empty() bool {
	return len(s.Items) == 0
}

// ValidateQuantity rejects negative quantities. Zero is valid and means
// remove.
func ValidateQuantity(q int) error {
	if q < 0 {
		return sferr.New(sferr.CodeCartQuantityInvalid, "quantity must not be negative",
			sferr.Field("quantity", q))
	}
	return nil
}

func ValidateProductID(id string) error {
	if strings.TrimSpace(id) == "" {
		return sferr.New(sferr.CodeCartProductInvalid, "product id is required")
	}
	return nil
}

func ProductFromWire(p backend.Product) Product {
	return Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Stock:       p.Stock,
	}
}

func ProductsFromWire(ps []backend.Product) []Product {
	out := make([]Product, 0, len(ps))
	for _, p := range ps {
		out = append(out, ProductFromWire(p))
	}
	return out
}

// LoadedFromWire builds the Loaded event for a server cart.
func LoadedFromWire(c backend.Cart) Loaded {
	items := make([]Item, 0, len(c.Items))
	for _, it := range c.Items {
		item := Item{ProductID: it.ProductID, Quantity: it.Quantity}
		if it.Product != nil {
			p := ProductFromWire(*it.Product)
			item.Product = &p
		}
		items = append(items, item)
	}
	return Loaded{Items: items, Total: c.Total}
}

func OrderFromWire(o backend.Order) Order {
	return Order{OrderNumber: o.OrderNumber, Total: o.Total}
}
