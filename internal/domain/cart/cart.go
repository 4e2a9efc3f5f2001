// Package cart holds per-user shopping carts keyed by (product, size, color).
package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// ErrInvalidQuantity is returned when adding a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Key identifies a cart line.
type Key struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Item is a cart line.
type Item struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
}

// Key returns the composite key of it.
func (it Item) Key() Key {
	return Key{ProductID: it.Product.ID, Size: it.Size, Color: it.Color}
}

// Add merges it into items. A line with the same key has its quantity increased.
func Add(items []Item, it Item) ([]Item, error) {
	if it.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	out := append([]Item(nil), items...)
	for i := range out {
		if out[i].Key() == it.Key() {
			out[i].Quantity += it.Quantity
			return out, nil
		}
	}
	return append(out, it), nil
}

// SetQuantity sets the quantity of the line with key k; zero or less removes it.
// found is false when no line matches.
func SetQuantity(items []Item, k Key, qty int) (out []Item, found bool) {
	out = make([]Item, 0, len(items))
	for _, it := range items {
		if it.Key() != k {
			out = append(out, it)
			continue
		}
		found = true
		if qty > 0 {
			it.Quantity = qty
			out = append(out, it)
		}
	}
	return out, found
}

// Totals is the priced cart summary.
type Totals struct {
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Savings   decimal.Decimal `json:"savings"`
	// Skipped lists product ids that are no longer in the catalog.
	Skipped []string `json:"skipped,omitempty"`
}

// PriceLookup returns the current catalog product for id.
type PriceLookup func(id string) (catalog.Product, bool)

// Total prices items against the current catalog. Lines whose product no
// longer exists are skipped and reported.
func Total(items []Item, lookup PriceLookup) Totals {
	t := Totals{Subtotal: decimal.Zero, Savings: decimal.Zero}
	for _, it := range items {
		p, ok := lookup(it.Product.ID)
		if !ok {
			t.Skipped = append(t.Skipped, it.Product.ID)
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		price := decimal.NewFromFloat(p.Price)
		t.Subtotal = t.Subtotal.Add(price.Mul(qty))
		if p.OriginalPrice != nil {
			orig := decimal.NewFromFloat(*p.OriginalPrice)
			if orig.GreaterThan(price) {
				t.Savings = t.Savings.Add(orig.Sub(price).Mul(qty))
			}
		}
		t.ItemCount += it.Quantity
	}
	t.Subtotal = t.Subtotal.Round(2)
	t.Savings = t.Savings.Round(2)
	return t
}

// Repository persists one cart per user.
type Repository interface {
	Load(ctx context.Context, userID string) ([]Item, error)
	Save(ctx context.Context, userID string, items []Item) error
	Clear(ctx context.Context, userID string) error
}
