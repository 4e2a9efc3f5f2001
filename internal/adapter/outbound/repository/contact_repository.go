package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"
	"github.com/SoleStyle/solestyle/internal/domain/contact"
)

// ContactRepository stores contact messages, newest first, under KeyContacts.
type ContactRepository struct {
	store kv.Store
}

// NewContactRepository creates a ContactRepository.
func NewContactRepository(store kv.Store) *ContactRepository {
	return &ContactRepository{store: store}
}

// Load returns the stored messages. Absent means empty.
func (r *ContactRepository) Load(ctx context.Context) ([]contact.Message, error) {
	var msgs []contact.Message
	_, _, err := loadJSON(ctx, r.store, KeyContacts, &msgs)
	if err != nil {
		if errors.Is(err, errDecode) {
			return nil, fmt.Errorf("%w: %v", contact.ErrCorruptList, err)
		}
		return nil, err
	}
	return nonNil(msgs), nil
}

// Save replaces the stored messages.
func (r *ContactRepository) Save(ctx context.Context, msgs []contact.Message) error {
	_, err := saveJSON(ctx, r.store, KeyContacts, nonNil(msgs), false, kv.NoRevision)
	return err
}

// Compile-time interface verification.
var _ contact.Repository = (*ContactRepository)(nil)
