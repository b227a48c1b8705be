package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/store"
)

// GrantRepository persists download grants under grant:{downloadId}.
type GrantRepository interface {
	Put(ctx context.Context, g *model.DownloadGrant) error
	// Get returns the grant for downloadID, or store.ErrNotFound.
	Get(ctx context.Context, downloadID string) (*model.DownloadGrant, error)
}

type storeGrantRepository struct {
	store store.Store
}

// NewGrantRepository returns a Record-Store-backed GrantRepository.
func NewGrantRepository(s store.Store) GrantRepository {
	return &storeGrantRepository{store: s}
}

func (r *storeGrantRepository) Put(ctx context.Context, g *model.DownloadGrant) error {
	key := grantKey(g.DownloadID)
	value, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("grant %s: marshal: %w", g.DownloadID, err)
	}
	if err := r.store.Put(ctx, key, value); err != nil {
		return err
	}
	verifyWrite(ctx, r.store, key)
	return nil
}

func (r *storeGrantRepository) Get(ctx context.Context, downloadID string) (*model.DownloadGrant, error) {
	rec, err := r.store.Get(ctx, grantKey(downloadID))
	if err != nil {
		return nil, err
	}
	g := &model.DownloadGrant{}
	if err := json.Unmarshal(rec.Value, g); err != nil {
		return nil, fmt.Errorf("grant %s: unmarshal: %w", downloadID, err)
	}
	return g, nil
}
