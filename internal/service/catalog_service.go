package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/event"
)

// ConflictPolicy decides what a mutation does when storage changed underneath it.
type ConflictPolicy string

const (
	// ConflictReject fails the mutation with a stale-snapshot error.
	ConflictReject ConflictPolicy = "reject"
	// ConflictOverwrite writes anyway (last write wins) and logs a warning.
	ConflictOverwrite ConflictPolicy = "overwrite"
)

// ErrFilterUnavailable is returned by FilterProducts when no filter evaluator is configured.
var ErrFilterUnavailable = errors.New("product filter not configured")

// ProductFilter evaluates a filter expression over products.
type ProductFilter interface {
	Filter(ctx context.Context, expression string, products []catalog.Product) ([]catalog.Product, error)
}

// CatalogService owns the product catalog and the hero selection.
// The whole catalog is held in memory and persisted as one snapshot on
// every mutation. Mutations build the next snapshot, persist it with a
// revision check, and only then replace the in-memory state.
type CatalogService struct {
	repo   catalog.Repository
	bus    event.Publisher
	filter ProductFilter
	logger *slog.Logger
	policy ConflictPolicy
	now    func() time.Time

	mu    sync.RWMutex // guards state and rev
	state catalog.Snapshot
	rev   uint64
}

// CatalogOption configures a CatalogService.
type CatalogOption func(*CatalogService)

// WithConflictPolicy sets the policy for stale writes. Default ConflictReject.
func WithConflictPolicy(p ConflictPolicy) CatalogOption {
	return func(s *CatalogService) { s.policy = p }
}

// WithProductFilter enables FilterProducts.
func WithProductFilter(f ProductFilter) CatalogOption {
	return func(s *CatalogService) { s.filter = f }
}

// WithCatalogClock overrides the clock used for ids and timestamps.
func WithCatalogClock(now func() time.Time) CatalogOption {
	return func(s *CatalogService) { s.now = now }
}

// NewCatalogService creates a CatalogService. Call Init before use.
func NewCatalogService(repo catalog.Repository, bus event.Publisher, logger *slog.Logger, opts ...CatalogOption) *CatalogService {
	s := &CatalogService{
		repo:   repo,
		bus:    bus,
		logger: logger,
		policy: ConflictReject,
		now:    time.Now,
		state:  catalog.Snapshot{Products: []catalog.Product{}, HeroProducts: []string{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init loads the persisted catalog, seeding storage on first run.
func (s *CatalogService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// loadLocked replaces the in-memory state from the repository.
// Caller must hold s.mu.
func (s *CatalogService) loadLocked(ctx context.Context) error {
	snap, rev, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, catalog.ErrCorruptSnapshot):
		// Serve the seed without persisting it; the next mutation overwrites the
		// corrupt blob because its revision is remembered.
		s.logger.Error("stored catalog is corrupt, falling back to bundled seed", "error", err)
		seed, seedErr := catalog.Seed()
		if seedErr != nil {
			return fmt.Errorf("load seed: %w", seedErr)
		}
		s.state = seed
		s.rev = rev
		return nil
	case err != nil:
		return fmt.Errorf("load catalog: %w", err)
	case snap == nil:
		seed, seedErr := catalog.Seed()
		if seedErr != nil {
			return fmt.Errorf("load seed: %w", seedErr)
		}
		s.rev = 0
		if err := s.commitLocked(ctx, seed); err != nil {
			if errors.Is(err, catalog.ErrStaleSnapshot) {
				// Another process seeded first; use its copy.
				return s.loadLocked(ctx)
			}
			return err
		}
		s.logger.Info("catalog seeded", "products", len(seed.Products))
		return nil
	default:
		s.state = *snap
		s.rev = rev
		s.logger.Debug("catalog loaded", "products", len(snap.Products))
		return nil
	}
}

// commitLocked persists next and makes it the in-memory state.
// Caller must hold s.mu for writing.
func (s *CatalogService) commitLocked(ctx context.Context, next catalog.Snapshot) error {
	next.LastUpdated = s.now().UTC()
	rev, err := s.repo.Save(ctx, next, s.rev)
	if errors.Is(err, catalog.ErrStaleSnapshot) {
		if s.policy != ConflictOverwrite {
			s.logger.Warn("catalog changed in storage, mutation rejected")
			return err
		}
		s.logger.Warn("catalog changed in storage, overwriting")
		rev, err = s.repo.Put(ctx, next)
	}
	if err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	s.state = next
	s.rev = rev
	return nil
}

// publish emits topics in order. Handler failures are logged by the bus.
func (s *CatalogService) publish(ctx context.Context, topics ...event.Topic) {
	for _, t := range topics {
		_ = s.bus.Publish(ctx, t)
	}
}

// GetAllProducts returns a copy of every product in catalog order.
func (s *CatalogService) GetAllProducts(_ context.Context) []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone().Products
}

// GetProductByID returns the product with id.
func (s *CatalogService) GetProductByID(_ context.Context, id string) (*catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := catalog.IndexOf(s.state.Products, id)
	if i < 0 {
		return nil, catalog.ErrProductNotFound
	}
	p := s.state.Products[i].Clone()
	return &p, nil
}

// GetProductsByCategory returns products in category; "all" returns everything.
func (s *CatalogService) GetProductsByCategory(ctx context.Context, category string) []catalog.Product {
	if category == catalog.CategoryAll {
		return s.GetAllProducts(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0)
	for _, p := range s.state.Products {
		if p.Category == category {
			out = append(out, p.Clone())
		}
	}
	return out
}

// AddProduct assigns an id from the current Unix time in milliseconds,
// appends the product and persists.
func (s *CatalogService) AddProduct(ctx context.Context, input catalog.NewProduct) (*catalog.Product, error) {
	s.mu.Lock()
	next := s.state.Clone()
	id := s.now().UnixMilli()
	for catalog.IndexOf(next.Products, strconv.FormatInt(id, 10)) >= 0 {
		id++
	}
	p := input.WithID(strconv.FormatInt(id, 10))
	if err := catalog.ValidateProduct(p); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.Products = append(next.Products, p)
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.logger.Info("product added", "id", p.ID, "name", p.Name)
	s.publish(ctx, event.ProductsUpdated)
	out := p.Clone()
	return &out, nil
}

// UpdateProduct merges patch into the product with id.
// Only a successful update persists and emits products_updated.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, patch catalog.ProductPatch) (*catalog.Product, error) {
	s.mu.Lock()
	i := catalog.IndexOf(s.state.Products, id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Warn("product not found for update", "id", id)
		return nil, catalog.ErrProductNotFound
	}
	next := s.state.Clone()
	updated := patch.Apply(next.Products[i])
	if err := catalog.ValidateProduct(updated); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	next.Products[i] = updated
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	s.logger.Info("product updated", "id", id, "name", updated.Name)
	s.publish(ctx, event.ProductsUpdated)
	out := updated.Clone()
	return &out, nil
}

// DeleteProduct removes the product with id and strips it from the hero
// selection. It reports whether a product was removed.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	i := catalog.IndexOf(s.state.Products, id)
	if i < 0 {
		s.mu.Unlock()
		s.logger.Warn("product not found for deletion", "id", id)
		return false, nil
	}
	next := s.state.Clone()
	name := next.Products[i].Name
	next.Products = append(next.Products[:i], next.Products[i+1:]...)
	next.HeroProducts = catalog.FilterHero(next.HeroProducts, next.Products)
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.mu.Unlock()

	s.logger.Info("product deleted", "id", id, "name", name)
	s.publish(ctx, event.ProductsUpdated, event.HeroUpdated)
	return true, nil
}

// GetHeroProducts returns the hero selection.
func (s *CatalogService) GetHeroProducts(_ context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.state.HeroProducts...)
}

// UpdateHeroProducts replaces the hero selection. Unknown and duplicate ids
// are dropped and the list is capped at catalog.MaxHeroProducts.
func (s *CatalogService) UpdateHeroProducts(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	next := s.state.Clone()
	next.HeroProducts = catalog.FilterHero(ids, next.Products)
	if dropped := len(ids) - len(next.HeroProducts); dropped > 0 {
		s.logger.Debug("hero ids dropped", "requested", len(ids), "kept", len(next.HeroProducts))
	}
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	hero := append([]string{}, next.HeroProducts...)
	s.mu.Unlock()

	s.logger.Info("hero products updated", "ids", hero)
	s.publish(ctx, event.HeroUpdated)
	return hero, nil
}

// SearchProducts returns products whose name, description, category or
// subcategory contains query, case-insensitively, in catalog order.
func (s *CatalogService) SearchProducts(_ context.Context, query string) []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0)
	for _, p := range s.state.Products {
		if p.Matches(query) {
			out = append(out, p.Clone())
		}
	}
	return out
}

// FilterProducts returns products for which the filter expression holds.
func (s *CatalogService) FilterProducts(ctx context.Context, expression string) ([]catalog.Product, error) {
	if s.filter == nil {
		return nil, ErrFilterUnavailable
	}
	return s.filter.Filter(ctx, expression, s.GetAllProducts(ctx))
}

// Categories returns the bundled category tree.
func (s *CatalogService) Categories() []catalog.Category {
	return catalog.Categories()
}

// ExportDatabase returns a copy of the whole catalog.
func (s *CatalogService) ExportDatabase(_ context.Context) catalog.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportDatabase replaces the whole catalog. Every product is validated and
// the import is rejected as a whole if any product fails. Hero ids are
// filtered against the imported products.
func (s *CatalogService) ImportDatabase(ctx context.Context, snap catalog.Snapshot) error {
	if err := catalog.ValidateSnapshot(snap); err != nil {
		return fmt.Errorf("import rejected: %w", err)
	}
	next := snap.Clone()
	next.HeroProducts = catalog.FilterHero(next.HeroProducts, next.Products)

	s.mu.Lock()
	if err := s.commitLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.logger.Info("catalog imported", "products", len(next.Products), "hero", len(next.HeroProducts))
	s.publish(ctx, event.ProductsUpdated, event.HeroUpdated)
	return nil
}

// ReloadFromStorage discards the in-memory catalog and re-reads storage.
func (s *CatalogService) ReloadFromStorage(ctx context.Context) error {
	s.mu.Lock()
	if err := s.loadLocked(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	n := len(s.state.Products)
	s.mu.Unlock()

	s.logger.Info("catalog reloaded from storage", "products", n)
	s.publish(ctx, event.ProductsUpdated, event.HeroUpdated)
	return nil
}

// ProductCount returns the number of products.
func (s *CatalogService) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.Products)
}

// Lookup returns a copy of the product with id. It satisfies the price
// lookups used by carts and wishlists.
func (s *CatalogService) Lookup(id string) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := catalog.IndexOf(s.state.Products, id)
	if i < 0 {
		return catalog.Product{}, false
	}
	return s.state.Products[i].Clone(), true
}
