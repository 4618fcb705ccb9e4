// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package cart

type Event interface {
	cartEvent()
}

// Loaded replaces the cart with the server's copy.
type Loaded struct {
	Items []Item
	Total float64
}

// LoadFailed records a failed fetch. Items already shown stay.
type LoadFailed struct {
	Err error
}

// MutationFailed records a rejected add, update, remove or checkout. The
// cart itself is not touched.
type MutationFailed struct {
	ProductID string
	Err       error
}

type CheckedOut struct {
	Order Order
}

func (Loaded) cartEvent()         {}
func (LoadFailed) cartEvent()     {}
func (MutationFailed) cartEvent() {}
func (CheckedOut) cartEvent()     {}

// Reduce returns the state that follows s after ev without mutating s.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case Loaded:
		items := make([]Item, 0, len(e.Items))
		index := make(map[string]int, len(e.Items))
		for _, it := range e.Items {
			if it.ProductID == "" || it.Quantity <= 0 {
				continue
			}
			if i, ok := index[it.ProductID]; ok {
				items[i].Quantity += it.Quantity
				continue
			}
			index[it.ProductID] = len(items)
			items = append(items, it)
		}
		s.Items = items
		s.Total = e.Total
		s.Loaded = true
		s.LastError = nil
		return s

	case LoadFailed:
		s.LastError = e.Err
		return s

	case MutationFailed:
		s.LastError = e.Err
		return s

	case CheckedOut:
		order := e.Order
		s.LastOrder = &order
		s.LastError = nil
		return s
	}
	return s
}
