package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/repository"
	"github.com/takk/backend/internal/store"
)

// Download denial reasons. Each maps to a distinct user-legible outcome.
var (
	ErrGrantNotFound       = errors.New("download: grant not found")
	ErrGrantExpired        = errors.New("download: grant expired")
	ErrNoPaymentRecord     = errors.New("download: no payment record")
	ErrPaymentNotCompleted = errors.New("download: payment not completed")
)

// DownloadService validates presented download identifiers against stored
// grants before the asset is released.
type DownloadService interface {
	// Authorize returns the grant when downloadID identifies an existing,
	// unexpired grant whose payment is AUTHORIZED or CAPTURED; otherwise
	// one of the typed denials above. Grants stay multi-use until expiry;
	// Used is recorded best-effort for admin visibility.
	Authorize(ctx context.Context, downloadID string) (*model.DownloadGrant, error)
}

// DownloadServiceImpl is the DownloadService implementation.
type DownloadServiceImpl struct {
	grants    repository.GrantRepository
	donations repository.DonationRepository
	now       func() time.Time
}

// NewDownloadService returns a DownloadServiceImpl.
func NewDownloadService(grants repository.GrantRepository, donations repository.DonationRepository) *DownloadServiceImpl {
	return &DownloadServiceImpl{grants: grants, donations: donations, now: time.Now}
}

func (s *DownloadServiceImpl) Authorize(ctx context.Context, downloadID string) (*model.DownloadGrant, error) {
	grant, err := s.grants.Get(ctx, downloadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}
	if grant.Expired(s.now()) {
		return nil, ErrGrantExpired
	}

	rec, err := s.donations.Get(ctx, grant.Reference, downloadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPaymentRecord
	}
	if err != nil {
		return nil, err
	}
	if !rec.Status.Downloadable() {
		return nil, ErrPaymentNotCompleted
	}

	s.markUsed(ctx, grant)
	return grant, nil
}

// markUsed records usage best-effort; a failure here must never block the
// download itself.
func (s *DownloadServiceImpl) markUsed(ctx context.Context, grant *model.DownloadGrant) {
	if grant.Used {
		return
	}
	grant.Used = true
	if err := s.grants.Put(ctx, grant); err != nil {
		slog.Warn("failed to mark grant used", "download_id", grant.DownloadID, "error", err)
	}
}
