package repository

import (
	"context"
	"fmt"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/cart"
	"github.com/SoleStyle/solestyle/internal/domain/wishlist"
)

// perUser stores one JSON list per user under keyFn(userID).
type perUser[T any] struct {
	store kv.Store
	keyFn func(string) string
}

func (r perUser[T]) load(ctx context.Context, userID string) ([]T, error) {
	key := r.keyFn(userID)
	if err := kv.ValidateKey(key); err != nil {
		return nil, fmt.Errorf("user id %q: %w", userID, err)
	}
	var items []T
	if _, _, err := loadJSON(ctx, r.store, key, &items); err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (r perUser[T]) save(ctx context.Context, userID string, items []T) error {
	_, err := saveJSON(ctx, r.store, r.keyFn(userID), nonNil(items), false, kv.NoRevision)
	return err
}

func (r perUser[T]) clear(ctx context.Context, userID string) error {
	key := r.keyFn(userID)
	if err := r.store.Remove(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// WishlistRepository stores wishlists under WishlistKey(userID).
type WishlistRepository struct {
	r perUser[wishlist.Item]
}

// NewWishlistRepository creates a WishlistRepository.
func NewWishlistRepository(store kv.Store) *WishlistRepository {
	return &WishlistRepository{r: perUser[wishlist.Item]{store: store, keyFn: WishlistKey}}
}

// Load returns the user's wishlist.
func (w *WishlistRepository) Load(ctx context.Context, userID string) ([]wishlist.Item, error) {
	return w.r.load(ctx, userID)
}

// Save replaces the user's wishlist.
func (w *WishlistRepository) Save(ctx context.Context, userID string, items []wishlist.Item) error {
	return w.r.save(ctx, userID, items)
}

// Clear removes the user's wishlist.
func (w *WishlistRepository) Clear(ctx context.Context, userID string) error {
	return w.r.clear(ctx, userID)
}

// CartRepository stores carts under CartKey(userID).
type CartRepository struct {
	r perUser[cart.Item]
}

// NewCartRepository creates a CartRepository.
func NewCartRepository(store kv.Store) *CartRepository {
	return &CartRepository{r: perUser[cart.Item]{store: store, keyFn: CartKey}}
}

// Load returns the user's cart.
func (c *CartRepository) Load(ctx context.Context, userID string) ([]cart.Item, error) {
	return c.r.load(ctx, userID)
}

// Save replaces the user's cart.
func (c *CartRepository) Save(ctx context.Context, userID string, items []cart.Item) error {
	return c.r.save(ctx, userID, items)
}

// Clear removes the user's cart.
func (c *CartRepository) Clear(ctx context.Context, userID string) error {
	return c.r.clear(ctx, userID)
}

// Compile-time interface verification.
var (
	_ wishlist.Repository = (*WishlistRepository)(nil)
	_ cart.Repository     = (*CartRepository)(nil)
)
