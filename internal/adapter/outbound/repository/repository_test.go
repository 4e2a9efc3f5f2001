package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/catalog"
	"github.com/SoleStyle/solestyle/internal/domain/contact"
	"github.com/SoleStyle/solestyle/internal/domain/user"
	"github.com/SoleStyle/solestyle/internal/domain/wishlist"
)

func TestCatalogRepository_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewCatalogRepository(kv.NewMemoryStore())

	snap, rev, err := repo.Load(ctx)
	if err != nil || snap != nil || rev != 0 {
		t.Fatalf("empty load: snap=%v rev=%d err=%v", snap, rev, err)
	}

	want := catalog.Snapshot{
		Products:     []catalog.Product{{ID: "1", Name: "Shoe", Price: 100, Category: "classy", Sizes: []string{"9"}, Colors: []string{"Red"}}},
		HeroProducts: []string{"1"},
		LastUpdated:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	rev, err = repo.Save(ctx, want, 0)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, loadedRev, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loadedRev != rev {
		t.Errorf("revision changed between save and load: %d vs %d", rev, loadedRev)
	}
	if diff := cmp.Diff(want, *got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestCatalogRepository_StaleSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewCatalogRepository(store)

	rev, _ := repo.Save(ctx, catalog.Snapshot{}, 0)
	_ = store.Set(ctx, KeyCatalog, `{"products":[],"heroProducts":[]}`)

	if _, err := repo.Save(ctx, catalog.Snapshot{}, rev); !errors.Is(err, catalog.ErrStaleSnapshot) {
		t.Errorf("expected ErrStaleSnapshot, got %v", err)
	}
	if _, err := repo.Put(ctx, catalog.Snapshot{}); err != nil {
		t.Errorf("Put should ignore revisions: %v", err)
	}
}

func TestCatalogRepository_CorruptBlob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", "{not json"},
		{"invalid product", `{"products":[{"id":"","name":"x","category":"c"}],"heroProducts":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := kv.NewMemoryStore()
			_ = store.Set(ctx, KeyCatalog, tt.raw)
			_, rev, err := NewCatalogRepository(store).Load(ctx)
			if !errors.Is(err, catalog.ErrCorruptSnapshot) {
				t.Fatalf("expected ErrCorruptSnapshot, got %v", err)
			}
			if rev != uint64(kv.RevisionOf(tt.raw)) {
				t.Error("corrupt load should report the blob's revision")
			}
		})
	}
}

func TestUserRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewUserRepository(store)

	users, rev, err := repo.Load(ctx)
	if err != nil || len(users) != 0 || rev != 0 {
		t.Fatalf("empty load: %v %d %v", users, rev, err)
	}

	_, err = repo.Save(ctx, []user.User{{ID: "u1", Email: "a@x.com"}}, rev)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	users, _, _ = repo.Load(ctx)
	if len(users) != 1 || users[0].Email != "a@x.com" {
		t.Errorf("loaded %+v", users)
	}

	if _, err := repo.Save(ctx, nil, 0); !errors.Is(err, user.ErrStaleDirectory) {
		t.Errorf("expected ErrStaleDirectory, got %v", err)
	}

	_ = store.Set(ctx, KeyUsers, `[{"id":"u2","email":"bad"}]`)
	if _, _, err := repo.Load(ctx); !errors.Is(err, user.ErrCorruptDirectory) {
		t.Errorf("expected ErrCorruptDirectory, got %v", err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get(ctx, KeyUsers); ok {
		t.Error("Clear should remove the directory key")
	}
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewSessionRepository(kv.NewMemoryStore())

	if u, err := repo.Get(ctx); err != nil || u != nil {
		t.Fatalf("empty session: %v %v", u, err)
	}
	_ = repo.Set(ctx, user.User{ID: "u1", Email: "a@x.com"})
	u, err := repo.Get(ctx)
	if err != nil || u == nil || u.Email != "a@x.com" {
		t.Fatalf("session: %v %v", u, err)
	}
	_ = repo.Clear(ctx)
	if u, _ := repo.Get(ctx); u != nil {
		t.Error("session should be cleared")
	}
}

func TestContactRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewContactRepository(store)

	msgs, err := repo.Load(ctx)
	if err != nil || msgs == nil || len(msgs) != 0 {
		t.Fatalf("empty load: %v %v", msgs, err)
	}
	_ = repo.Save(ctx, []contact.Message{{ID: "c1", Name: "Ann"}})
	msgs, _ = repo.Load(ctx)
	if len(msgs) != 1 || msgs[0].ID != "c1" {
		t.Errorf("loaded %+v", msgs)
	}

	_ = store.Set(ctx, KeyContacts, "nope")
	if _, err := repo.Load(ctx); !errors.Is(err, contact.ErrCorruptList) {
		t.Errorf("expected ErrCorruptList, got %v", err)
	}
}

func TestWishlistRepository_KeyPerUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := kv.NewMemoryStore()
	repo := NewWishlistRepository(store)

	_ = repo.Save(ctx, "u1", []wishlist.Item{{Product: catalog.Product{ID: "1"}, OriginalPrice: 10}})
	if _, ok, _ := store.Get(ctx, "wishlist_u1"); !ok {
		t.Fatal("expected wishlist under wishlist_u1")
	}
	items, _ := repo.Load(ctx, "u2")
	if len(items) != 0 {
		t.Errorf("other user's wishlist leaked: %+v", items)
	}
	if _, err := repo.Load(ctx, "../evil"); !errors.Is(err, kv.ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey for unsafe user id, got %v", err)
	}
	_ = repo.Clear(ctx, "u1")
	items, _ = repo.Load(ctx, "u1")
	if len(items) != 0 {
		t.Error("Clear should empty the wishlist")
	}
}
