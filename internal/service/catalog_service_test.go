package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/adapter/outbound/repository"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/event"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countTopic subscribes a counter to topic.
func countTopic(bus *event.Bus, topic event.Topic) *atomic.Int32 {
	var n atomic.Int32
	bus.Subscribe(topic, func(context.Context, event.Topic) error {
		n.Add(1)
		return nil
	})
	return &n
}

// testCatalogEnv builds a CatalogService over store and runs Init.
func testCatalogEnv(t *testing.T, store kv.Store, opts ...CatalogOption) (*CatalogService, *event.Bus) {
	t.Helper()
	bus := event.NewBus(quietLogger())
	svc := NewCatalogService(repository.NewCatalogRepository(store), bus, quietLogger(), opts...)
	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return svc, bus
}

func float(v float64) *float64 { return &v }

func TestCatalogService_InitSeedsStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, _ := testCatalogEnv(t, store)

	seed, err := catalog.Seed()
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if got := svc.ProductCount(); got != len(seed.Products) {
		t.Errorf("ProductCount() = %d, want %d", got, len(seed.Products))
	}
	if _, ok, _ := store.Get(ctx, repository.KeyCatalog); !ok {
		t.Error("seed was not persisted")
	}

	// A second service over the same store loads instead of reseeding.
	other, _ := testCatalogEnv(t, store)
	if diff := cmp.Diff(svc.GetAllProducts(ctx), other.GetAllProducts(ctx)); diff != "" {
		t.Errorf("second Init() products mismatch (-first +second):\n%s", diff)
	}
}

func TestCatalogService_AddProductUniqueIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fixed := time.UnixMilli(1_700_000_000_000)
	svc, bus := testCatalogEnv(t, kv.NewMemoryStore(), WithCatalogClock(func() time.Time { return fixed }))
	updates := countTopic(bus, event.ProductsUpdated)

	seen := make(map[string]bool)
	for range 3 {
		p, err := svc.AddProduct(ctx, catalog.NewProduct{Name: "Runner", Price: 90, Category: "funky"})
		if err != nil {
			t.Fatalf("AddProduct() error: %v", err)
		}
		if seen[p.ID] {
			t.Fatalf("AddProduct() reused id %q", p.ID)
		}
		seen[p.ID] = true
	}
	if _, err := svc.GetProductByID(ctx, "1700000000002"); err != nil {
		t.Errorf("third product id should be clock+2: %v", err)
	}
	if got := updates.Load(); got != 3 {
		t.Errorf("products_updated fired %d times, want 3", got)
	}
}

func TestCatalogService_AddProductRejectsInvalid(t *testing.T) {
	t.Parallel()
	svc, bus := testCatalogEnv(t, kv.NewMemoryStore())
	updates := countTopic(bus, event.ProductsUpdated)
	before := svc.ProductCount()

	_, err := svc.AddProduct(context.Background(), catalog.NewProduct{Name: "", Price: -1})
	if err == nil {
		t.Fatal("AddProduct() accepted an invalid product")
	}
	if svc.ProductCount() != before {
		t.Error("invalid product was stored")
	}
	if updates.Load() != 0 {
		t.Error("products_updated fired for a rejected add")
	}
}

func TestCatalogService_UpdateProductEmitsOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, bus := testCatalogEnv(t, kv.NewMemoryStore())
	updates := countTopic(bus, event.ProductsUpdated)

	p, err := svc.UpdateProduct(ctx, "1", catalog.ProductPatch{Price: float(80)})
	if err != nil {
		t.Fatalf("UpdateProduct() error: %v", err)
	}
	if p.Price != 80 {
		t.Errorf("UpdateProduct() price = %v, want 80", p.Price)
	}
	got, err := svc.GetProductByID(ctx, "1")
	if err != nil {
		t.Fatalf("GetProductByID() error: %v", err)
	}
	if got.Price != 80 {
		t.Errorf("stored price = %v, want 80", got.Price)
	}
	if n := updates.Load(); n != 1 {
		t.Errorf("products_updated fired %d times, want 1", n)
	}

	if _, err := svc.UpdateProduct(ctx, "missing", catalog.ProductPatch{Price: float(1)}); !errors.Is(err, catalog.ErrProductNotFound) {
		t.Errorf("UpdateProduct(missing) error = %v, want ErrProductNotFound", err)
	}
	if n := updates.Load(); n != 1 {
		t.Errorf("failed update emitted; count = %d", n)
	}
}

func TestCatalogService_DeleteProductStripsHero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, bus := testCatalogEnv(t, kv.NewMemoryStore())
	heroUpdates := countTopic(bus, event.HeroUpdated)

	if _, err := svc.UpdateHeroProducts(ctx, []string{"1", "2", "3"}); err != nil {
		t.Fatalf("UpdateHeroProducts() error: %v", err)
	}
	removed, err := svc.DeleteProduct(ctx, "2")
	if err != nil || !removed {
		t.Fatalf("DeleteProduct() = %v, %v; want true, nil", removed, err)
	}
	if _, err := svc.GetProductByID(ctx, "2"); !errors.Is(err, catalog.ErrProductNotFound) {
		t.Errorf("GetProductByID(deleted) error = %v, want ErrProductNotFound", err)
	}
	if diff := cmp.Diff([]string{"1", "3"}, svc.GetHeroProducts(ctx)); diff != "" {
		t.Errorf("hero after delete (-want +got):\n%s", diff)
	}
	if n := heroUpdates.Load(); n != 2 {
		t.Errorf("hero_updated fired %d times, want 2", n)
	}

	removed, err = svc.DeleteProduct(ctx, "2")
	if err != nil || removed {
		t.Errorf("DeleteProduct(again) = %v, %v; want false, nil", removed, err)
	}
}

func TestCatalogService_UpdateHeroProductsFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := testCatalogEnv(t, kv.NewMemoryStore())

	got, err := svc.UpdateHeroProducts(ctx, []string{"3", "nope", "3", "1", "2", "4", "5", "6", "7"})
	if err != nil {
		t.Fatalf("UpdateHeroProducts() error: %v", err)
	}
	want := []string{"3", "1", "2", "4", "5", "6"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UpdateHeroProducts() (-want +got):\n%s", diff)
	}
	for _, id := range svc.GetHeroProducts(ctx) {
		if _, err := svc.GetProductByID(ctx, id); err != nil {
			t.Errorf("hero id %q does not resolve: %v", id, err)
		}
	}
}

func TestCatalogService_Queries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := testCatalogEnv(t, kv.NewMemoryStore())

	all := svc.GetProductsByCategory(ctx, catalog.CategoryAll)
	if len(all) != svc.ProductCount() {
		t.Errorf("category all = %d products, want %d", len(all), svc.ProductCount())
	}
	for _, p := range svc.GetProductsByCategory(ctx, "funky") {
		if p.Category != "funky" {
			t.Errorf("category funky returned %q", p.Category)
		}
	}
	if got := svc.GetProductsByCategory(ctx, "unknown"); len(got) != 0 {
		t.Errorf("unknown category returned %d products", len(got))
	}

	first := svc.GetAllProducts(ctx)[0]
	hits := svc.SearchProducts(ctx, first.Name)
	if len(hits) == 0 || hits[0].ID != first.ID {
		t.Errorf("SearchProducts(%q) did not return the product", first.Name)
	}
	if got := svc.SearchProducts(ctx, "zzzz-no-match"); len(got) != 0 {
		t.Errorf("SearchProducts(no match) = %d results", len(got))
	}

	// Returned slices are copies.
	all[0].Name = "mutated"
	if p, _ := svc.GetProductByID(ctx, all[0].ID); p.Name == "mutated" {
		t.Error("GetProductsByCategory() leaked internal state")
	}
	if _, err := svc.FilterProducts(ctx, "price > 0"); !errors.Is(err, ErrFilterUnavailable) {
		t.Errorf("FilterProducts() without filter error = %v", err)
	}
}

func TestCatalogService_ExportImportRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src, _ := testCatalogEnv(t, kv.NewMemoryStore())
	if _, err := src.UpdateProduct(ctx, "3", catalog.ProductPatch{Price: float(42)}); err != nil {
		t.Fatalf("UpdateProduct() error: %v", err)
	}
	exported := src.ExportDatabase(ctx)

	dst, bus := testCatalogEnv(t, kv.NewMemoryStore())
	updates := countTopic(bus, event.ProductsUpdated)
	if _, err := dst.AddProduct(ctx, catalog.NewProduct{Name: "Extra", Price: 1, Category: "classy"}); err != nil {
		t.Fatalf("AddProduct() error: %v", err)
	}
	if err := dst.ImportDatabase(ctx, exported); err != nil {
		t.Fatalf("ImportDatabase() error: %v", err)
	}
	if diff := cmp.Diff(exported.Products, dst.GetAllProducts(ctx)); diff != "" {
		t.Errorf("imported products (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(exported.HeroProducts, dst.GetHeroProducts(ctx)); diff != "" {
		t.Errorf("imported hero (-want +got):\n%s", diff)
	}
	if n := updates.Load(); n != 2 {
		t.Errorf("products_updated fired %d times, want 2", n)
	}
}

func TestCatalogService_ImportRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := testCatalogEnv(t, kv.NewMemoryStore())
	before := svc.ExportDatabase(ctx)

	bad := before.Clone()
	bad.Products[4].Rating = 9
	if err := svc.ImportDatabase(ctx, bad); err == nil {
		t.Fatal("ImportDatabase() accepted a product with rating 9")
	}
	if diff := cmp.Diff(before.Products, svc.GetAllProducts(ctx)); diff != "" {
		t.Errorf("rejected import changed the catalog:\n%s", diff)
	}
}

func TestCatalogService_ImportFiltersHero(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := testCatalogEnv(t, kv.NewMemoryStore())
	snap := svc.ExportDatabase(ctx)
	snap.HeroProducts = []string{"ghost", "2", "2"}
	if err := svc.ImportDatabase(ctx, snap); err != nil {
		t.Fatalf("ImportDatabase() error: %v", err)
	}
	if diff := cmp.Diff([]string{"2"}, svc.GetHeroProducts(ctx)); diff != "" {
		t.Errorf("hero after import (-want +got):\n%s", diff)
	}
}

func TestCatalogService_CorruptStorageFallsBackToSeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	if err := store.Set(ctx, repository.KeyCatalog, "{not json"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	svc, _ := testCatalogEnv(t, store)

	seed, _ := catalog.Seed()
	if got := svc.ProductCount(); got != len(seed.Products) {
		t.Errorf("ProductCount() = %d, want seed %d", got, len(seed.Products))
	}
	raw, _, _ := store.Get(ctx, repository.KeyCatalog)
	if raw != "{not json" {
		t.Error("fallback seed was persisted over the corrupt blob")
	}

	// The next mutation replaces the corrupt blob.
	if _, err := svc.UpdateHeroProducts(ctx, []string{"1"}); err != nil {
		t.Fatalf("UpdateHeroProducts() after corrupt load error: %v", err)
	}
	if err := svc.ReloadFromStorage(ctx); err != nil {
		t.Fatalf("ReloadFromStorage() error: %v", err)
	}
	if diff := cmp.Diff([]string{"1"}, svc.GetHeroProducts(ctx)); diff != "" {
		t.Errorf("hero after reload (-want +got):\n%s", diff)
	}
}

func TestCatalogService_StaleWriteRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, _ := testCatalogEnv(t, store)
	b, _ := testCatalogEnv(t, store)

	if _, err := a.UpdateProduct(ctx, "1", catalog.ProductPatch{Price: float(10)}); err != nil {
		t.Fatalf("first writer error: %v", err)
	}
	_, err := b.UpdateProduct(ctx, "1", catalog.ProductPatch{Price: float(20)})
	if !errors.Is(err, catalog.ErrStaleSnapshot) {
		t.Fatalf("second writer error = %v, want ErrStaleSnapshot", err)
	}
	if p, _ := b.GetProductByID(ctx, "1"); p.Price == 20 {
		t.Error("rejected write changed in-memory state")
	}

	if err := b.ReloadFromStorage(ctx); err != nil {
		t.Fatalf("ReloadFromStorage() error: %v", err)
	}
	if p, _ := b.GetProductByID(ctx, "1"); p.Price != 10 {
		t.Errorf("reloaded price = %v, want 10", p.Price)
	}
	if _, err := b.UpdateProduct(ctx, "1", catalog.ProductPatch{Price: float(20)}); err != nil {
		t.Errorf("write after reload error: %v", err)
	}
}

func TestCatalogService_StaleWriteOverwritePolicy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	a, _ := testCatalogEnv(t, store)
	b, _ := testCatalogEnv(t, store, WithConflictPolicy(ConflictOverwrite))

	if _, err := a.UpdateProduct(ctx, "1", catalog.ProductPatch{Price: float(10)}); err != nil {
		t.Fatalf("first writer error: %v", err)
	}
	if _, err := b.UpdateProduct(ctx, "2", catalog.ProductPatch{Price: float(20)}); err != nil {
		t.Fatalf("overwrite writer error: %v", err)
	}

	fresh, _ := testCatalogEnv(t, store)
	if p, _ := fresh.GetProductByID(ctx, "1"); p.Price == 10 {
		t.Error("last write should win and discard the first writer's change")
	}
	if p, _ := fresh.GetProductByID(ctx, "2"); p.Price != 20 {
		t.Errorf("product 2 price = %v, want 20", p.Price)
	}
}

type stubFilter struct{ calls int }

func (f *stubFilter) Filter(_ context.Context, _ string, products []catalog.Product) ([]catalog.Product, error) {
	f.calls++
	return products[:1], nil
}

func TestCatalogService_FilterProductsDelegates(t *testing.T) {
	t.Parallel()
	f := &stubFilter{}
	svc, _ := testCatalogEnv(t, kv.NewMemoryStore(), WithProductFilter(f))
	got, err := svc.FilterProducts(context.Background(), "true")
	if err != nil {
		t.Fatalf("FilterProducts() error: %v", err)
	}
	if len(got) != 1 || f.calls != 1 {
		t.Errorf("FilterProducts() = %d products, %d calls", len(got), f.calls)
	}
}
