package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/SoleStyle/solestyle/internal/domain/cart"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/wishlist"
)

// ProductLookup resolves the current catalog product for an id.
type ProductLookup interface {
	Lookup(id string) (catalog.Product, bool)
}

// WishlistService manages per-user wishlists.
type WishlistService struct {
	repo    wishlist.Repository
	catalog ProductLookup
	logger  *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewWishlistService creates a WishlistService.
func NewWishlistService(repo wishlist.Repository, products ProductLookup, logger *slog.Logger) *WishlistService {
	return &WishlistService{repo: repo, catalog: products, logger: logger, now: time.Now}
}

// List returns the user's wishlist.
func (s *WishlistService) List(ctx context.Context, userID string) ([]wishlist.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Load(ctx, userID)
}

// Add saves productID for the user at its current price. Adding a product
// already present is a no-op and returns false.
func (s *WishlistService) Add(ctx context.Context, userID, productID string) (bool, error) {
	p, ok := s.catalog.Lookup(productID)
	if !ok {
		return false, catalog.ErrProductNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load wishlist: %w", err)
	}
	if wishlist.Contains(items, productID) {
		return false, nil
	}
	items = append(items, wishlist.Item{
		Product:       p,
		AddedAt:       s.now().UTC(),
		OriginalPrice: p.Price,
	})
	if err := s.repo.Save(ctx, userID, items); err != nil {
		return false, fmt.Errorf("save wishlist: %w", err)
	}
	s.logger.Debug("wishlist item added", "user_id", userID, "product_id", productID)
	return true, nil
}

// Remove drops productID from the user's wishlist.
func (s *WishlistService) Remove(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load wishlist: %w", err)
	}
	items = slices.DeleteFunc(items, func(it wishlist.Item) bool { return it.Product.ID == productID })
	if err := s.repo.Save(ctx, userID, items); err != nil {
		return fmt.Errorf("save wishlist: %w", err)
	}
	return nil
}

// Contains reports whether the user saved productID.
func (s *WishlistService) Contains(ctx context.Context, userID, productID string) (bool, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return false, err
	}
	return wishlist.Contains(items, productID), nil
}

// Clear empties the user's wishlist.
func (s *WishlistService) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Clear(ctx, userID)
}

// PriceDrops returns saved items whose current catalog price is below the
// price captured when they were added and that were not yet notified.
// Stored product copies are refreshed from the catalog.
func (s *WishlistService) PriceDrops(ctx context.Context, userID string) ([]wishlist.PriceDrop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load wishlist: %w", err)
	}
	drops := make([]wishlist.PriceDrop, 0)
	changed := false
	for i, it := range items {
		current, ok := s.catalog.Lookup(it.Product.ID)
		if !ok {
			continue
		}
		if drop, ok := wishlist.DetectPriceDrop(it, current); ok {
			s.logger.Info("price drop detected", "user_id", userID, "product_id", it.Product.ID,
				"was", it.OriginalPrice, "now", current.Price)
			drops = append(drops, drop)
		}
		if current.Price != it.Product.Price || current.Name != it.Product.Name {
			items[i].Product = current
			changed = true
		}
	}
	if changed {
		if err := s.repo.Save(ctx, userID, items); err != nil {
			return nil, fmt.Errorf("save wishlist: %w", err)
		}
	}
	return drops, nil
}

// MarkPriceDropNotified suppresses further price-drop reports for productID.
func (s *WishlistService) MarkPriceDropNotified(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return fmt.Errorf("load wishlist: %w", err)
	}
	i := slices.IndexFunc(items, func(it wishlist.Item) bool { return it.Product.ID == productID })
	if i < 0 {
		return catalog.ErrProductNotFound
	}
	items[i].PriceDropNotified = true
	return s.repo.Save(ctx, userID, items)
}

// CartService manages per-user carts.
type CartService struct {
	repo    cart.Repository
	catalog ProductLookup
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewCartService creates a CartService.
func NewCartService(repo cart.Repository, products ProductLookup, logger *slog.Logger) *CartService {
	return &CartService{repo: repo, catalog: products, logger: logger}
}

// List returns the user's cart lines.
func (s *CartService) List(ctx context.Context, userID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Load(ctx, userID)
}

// Add puts qty of productID in the given size and color into the cart.
func (s *CartService) Add(ctx context.Context, userID string, key cart.Key, qty int) ([]cart.Item, error) {
	p, ok := s.catalog.Lookup(key.ProductID)
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	items, err = cart.Add(items, cart.Item{Product: p, Quantity: qty, Size: key.Size, Color: key.Color})
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, userID, items); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return items, nil
}

// UpdateQuantity sets the quantity of a line; zero or less removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, key cart.Key, qty int) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	items, found := cart.SetQuantity(items, key, qty)
	if !found {
		return nil, catalog.ErrProductNotFound
	}
	if err := s.repo.Save(ctx, userID, items); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return items, nil
}

// Remove deletes a line.
func (s *CartService) Remove(ctx context.Context, userID string, key cart.Key) ([]cart.Item, error) {
	return s.UpdateQuantity(ctx, userID, key, 0)
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Clear(ctx, userID)
}

// Total prices the cart against the current catalog.
func (s *CartService) Total(ctx context.Context, userID string) (cart.Totals, error) {
	items, err := s.List(ctx, userID)
	if err != nil {
		return cart.Totals{}, err
	}
	t := cart.Total(items, s.catalog.Lookup)
	if len(t.Skipped) > 0 {
		s.logger.Debug("cart lines skipped, products no longer in catalog", "user_id", userID, "skipped", t.Skipped)
	}
	return t, nil
}
