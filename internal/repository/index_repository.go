package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/store"
)

// indexRetries bounds the CAS loop under concurrent index writers.
const indexRetries = 5

// IndexRepository maintains the shared donation index document used for
// admin listing. The document is read-modify-write, guarded by the store's
// conditional write so concurrent writers cannot silently drop each
// other's entries.
type IndexRepository interface {
	Upsert(ctx context.Context, e model.DonationIndexEntry) error
	List(ctx context.Context) ([]model.DonationIndexEntry, error)
}

type storeIndexRepository struct {
	store store.Store
}

// NewIndexRepository returns a Record-Store-backed IndexRepository.
func NewIndexRepository(s store.Store) IndexRepository {
	return &storeIndexRepository{store: s}
}

func (r *storeIndexRepository) Upsert(ctx context.Context, e model.DonationIndexEntry) error {
	for attempt := 0; attempt < indexRetries; attempt++ {
		ix, version, err := r.load(ctx)
		if err != nil {
			return err
		}
		ix.Upsert(e)
		value, err := json.Marshal(ix)
		if err != nil {
			return fmt.Errorf("index: marshal: %w", err)
		}
		err = r.store.PutIf(ctx, indexKey, value, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		// Another writer got in first; reload and merge again.
	}
	return fmt.Errorf("index: upsert %s: %w", e.Reference, store.ErrConflict)
}

func (r *storeIndexRepository) List(ctx context.Context) ([]model.DonationIndexEntry, error) {
	ix, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if ix.Entries == nil {
		return []model.DonationIndexEntry{}, nil
	}
	return ix.Entries, nil
}

// load returns the current index and its version token. A missing
// document is an empty index with version "" (create-if-absent).
func (r *storeIndexRepository) load(ctx context.Context) (*model.DonationIndex, string, error) {
	rec, err := r.store.Get(ctx, indexKey)
	if errors.Is(err, store.ErrNotFound) {
		return &model.DonationIndex{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	ix := &model.DonationIndex{}
	if err := json.Unmarshal(rec.Value, ix); err != nil {
		return nil, "", fmt.Errorf("index: unmarshal: %w", err)
	}
	return ix, rec.Version, nil
}
