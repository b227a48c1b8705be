package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/store"
)

// DonationRepository persists the authoritative donation records.
type DonationRepository interface {
	// Put writes the record under donation:{reference}:{downloadId}.
	Put(ctx context.Context, d *model.DonationRecord) error
	// Get returns the record for (reference, downloadID), or store.ErrNotFound.
	Get(ctx context.Context, reference, downloadID string) (*model.DonationRecord, error)
	// FindByReference returns the record for reference regardless of its
	// download id, or store.ErrNotFound. This is the redelivery
	// idempotency check: one reference never owns more than one record.
	FindByReference(ctx context.Context, reference string) (*model.DonationRecord, error)
}

type storeDonationRepository struct {
	store store.Store
}

// NewDonationRepository returns a Record-Store-backed DonationRepository.
func NewDonationRepository(s store.Store) DonationRepository {
	return &storeDonationRepository{store: s}
}

func (r *storeDonationRepository) Put(ctx context.Context, d *model.DonationRecord) error {
	key := donationKey(d.Reference, d.DownloadID)
	value, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("donation %s: marshal: %w", d.Reference, err)
	}
	if err := r.store.Put(ctx, key, value); err != nil {
		return err
	}
	verifyWrite(ctx, r.store, key)
	return nil
}

func (r *storeDonationRepository) Get(ctx context.Context, reference, downloadID string) (*model.DonationRecord, error) {
	rec, err := r.store.Get(ctx, donationKey(reference, downloadID))
	if err != nil {
		return nil, err
	}
	return unmarshalDonation(rec.Value)
}

func (r *storeDonationRepository) FindByReference(ctx context.Context, reference string) (*model.DonationRecord, error) {
	recs, err := r.store.List(ctx, donationRefPrefix(reference))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, store.ErrNotFound
	}
	return unmarshalDonation(recs[0].Value)
}

func unmarshalDonation(value []byte) (*model.DonationRecord, error) {
	d := &model.DonationRecord{}
	if err := json.Unmarshal(value, d); err != nil {
		return nil, fmt.Errorf("donation: unmarshal: %w", err)
	}
	return d, nil
}

// verifyWrite reads a key back after a write. The backing store may be
// eventually consistent, so it retries with a short backoff; a persistent
// miss is logged but never fails the write that already succeeded.
func verifyWrite(ctx context.Context, s store.Store, key string) {
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.Get(ctx, key)
		if err == nil {
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("post-write verification failed", "key", key, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	slog.Warn("write not yet visible after verification retries", "key", key)
}
