// Package wishlist holds per-user saved products and price-drop detection.
package wishlist

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// Item is a saved product. OriginalPrice is the price when the item was added.
type Item struct {
	Product           catalog.Product `json:"product"`
	AddedAt           time.Time       `json:"addedAt"`
	OriginalPrice     float64         `json:"originalPrice"`
	PriceDropNotified bool            `json:"priceDropNotified,omitempty"`
}

// PriceDrop describes a wishlist item whose current catalog price is below
// the price captured when it was added.
type PriceDrop struct {
	Item         Item    `json:"item"`
	CurrentPrice float64 `json:"currentPrice"`
	Savings      float64 `json:"savings"`
	// PercentOff is rounded to whole percent.
	PercentOff int64 `json:"percentOff"`
}

// Contains reports whether items holds productID.
func Contains(items []Item, productID string) bool {
	return slices.ContainsFunc(items, func(it Item) bool { return it.Product.ID == productID })
}

// DetectPriceDrop compares it against the current catalog product.
// ok is false when the price did not drop or the drop was already notified.
func DetectPriceDrop(it Item, current catalog.Product) (PriceDrop, bool) {
	if it.PriceDropNotified {
		return PriceDrop{}, false
	}
	orig := decimal.NewFromFloat(it.OriginalPrice)
	now := decimal.NewFromFloat(current.Price)
	if !now.LessThan(orig) {
		return PriceDrop{}, false
	}
	savings := orig.Sub(now)
	pct := int64(0)
	if orig.IsPositive() {
		pct = savings.Div(orig).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	refreshed := it
	refreshed.Product = current.Clone()
	return PriceDrop{
		Item:         refreshed,
		CurrentPrice: now.InexactFloat64(),
		Savings:      savings.Round(2).InexactFloat64(),
		PercentOff:   pct,
	}, true
}

// Repository persists one wishlist per user.
type Repository interface {
	Load(ctx context.Context, userID string) ([]Item, error)
	Save(ctx context.Context, userID string, items []Item) error
	Clear(ctx context.Context, userID string) error
}
