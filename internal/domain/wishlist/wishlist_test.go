package wishlist

import (
	"testing"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

func TestDetectPriceDrop(t *testing.T) {
	t.Parallel()

	item := Item{Product: catalog.Product{ID: "9", Price: 140}, OriginalPrice: 140}
	tests := []struct {
		name      string
		item      Item
		current   float64
		wantDrop  bool
		wantSaved float64
		wantPct   int64
	}{
		{"price dropped", item, 119.99, true, 20.01, 14},
		{"unchanged", item, 140, false, 0, 0},
		{"price rose", item, 150, false, 0, 0},
		{"already notified", Item{Product: item.Product, OriginalPrice: 140, PriceDropNotified: true}, 100, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			drop, ok := DetectPriceDrop(tt.item, catalog.Product{ID: "9", Name: "Neon", Price: tt.current})
			if ok != tt.wantDrop {
				t.Fatalf("ok = %v, want %v", ok, tt.wantDrop)
			}
			if !ok {
				return
			}
			if drop.Savings != tt.wantSaved {
				t.Errorf("savings = %v, want %v", drop.Savings, tt.wantSaved)
			}
			if drop.PercentOff != tt.wantPct {
				t.Errorf("percent = %d, want %d", drop.PercentOff, tt.wantPct)
			}
			if drop.Item.Product.Name != "Neon" {
				t.Error("price drop should carry the refreshed catalog product")
			}
		})
	}
}

func TestContains(t *testing.T) {
	t.Parallel()

	items := []Item{{Product: catalog.Product{ID: "1"}}, {Product: catalog.Product{ID: "2"}}}
	if !Contains(items, "2") || Contains(items, "3") {
		t.Error("Contains mismatch")
	}
}
