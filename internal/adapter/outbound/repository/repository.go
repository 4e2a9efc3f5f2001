// Package repository implements the domain repository ports as JSON
// documents stored in a kv.Store, one key per aggregate.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
)

// Storage keys. These are the localStorage keys of the browser storefront, so
// data exported from either side stays interchangeable.
const (
	KeyCatalog     = "solestyle_database"
	KeyUsers       = "solestyle_users_database"
	KeySession     = "solestyle_current_user"
	KeyContacts    = "solestyle_contacts"
	KeyCloudBackup = "solestyle_cloud_backup"
)

// WishlistKey returns the key of a user's wishlist.
func WishlistKey(userID string) string { return "wishlist_" + userID }

// CartKey returns the key of a user's cart.
func CartKey(userID string) string { return "cart_" + userID }

// errDecode marks a stored value that is not valid JSON for its type.
var errDecode = errors.New("decode stored value")

// loadJSON reads key into dst. found is false when the key is absent.
// On a decode failure the revision of the raw value is still returned.
func loadJSON(ctx context.Context, store kv.Store, key string, dst any) (rev kv.Revision, found bool, err error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		return kv.NoRevision, false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return kv.NoRevision, false, nil
	}
	rev = kv.RevisionOf(raw)
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return rev, true, fmt.Errorf("%w %s: %v", errDecode, key, err)
	}
	return rev, true, nil
}

// saveJSON writes v under key. With checked set it uses compare-and-set
// against expected.
func saveJSON(ctx context.Context, store kv.Store, key string, v any, checked bool, expected kv.Revision) (kv.Revision, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kv.NoRevision, fmt.Errorf("encode %s: %w", key, err)
	}
	value := string(data)
	if !checked {
		if err := store.Set(ctx, key, value); err != nil {
			return kv.NoRevision, fmt.Errorf("set %s: %w", key, err)
		}
		return kv.RevisionOf(value), nil
	}
	rev, err := store.CompareAndSet(ctx, key, expected, value)
	if err != nil {
		if errors.Is(err, kv.ErrRevisionMismatch) {
			return rev, err
		}
		return kv.NoRevision, fmt.Errorf("compare-and-set %s: %w", key, err)
	}
	return rev, nil
}
