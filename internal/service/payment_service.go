package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/repository"
	"github.com/takk/backend/internal/store"
	"github.com/takk/backend/pkg/vipps"
)

// ErrInvalidEvent marks an inbound notification that is missing its
// load-bearing fields; the sender should not redeliver it.
var ErrInvalidEvent = errors.New("payment: invalid event")

// ErrNotCapturable is returned by an admin capture against a reference
// whose payment never reached AUTHORIZED.
var ErrNotCapturable = errors.New("payment: reference not in a capturable state")

// PaymentService drives the webhook pipeline: normalize → auto-capture →
// grant issuance → index update, plus the admin capture retry path.
type PaymentService interface {
	// ProcessEvent reconciles one normalized notification. It is safe
	// under duplicate and out-of-order delivery: a reference never gets a
	// second grant and a stored status never regresses. The returned
	// record is nil for events that create nothing (CREATED, UNKNOWN, or
	// terminal events for never-authorized references).
	ProcessEvent(ctx context.Context, ev vipps.Event) (*model.DonationRecord, error)
	// CaptureByReference is the explicit admin retry for failed
	// auto-captures. Already-captured references succeed without a
	// provider call.
	CaptureByReference(ctx context.Context, reference string) (*model.DonationRecord, error)
}

// PaymentServiceImpl is the PaymentService implementation.
type PaymentServiceImpl struct {
	client    vipps.Client
	donations repository.DonationRepository
	grants    repository.GrantRepository
	index     repository.IndexRepository
	assetKey  string
	now       func() time.Time
}

// NewPaymentService wires the pipeline. assetKey selects the artifact new
// grants release.
func NewPaymentService(client vipps.Client, donations repository.DonationRepository, grants repository.GrantRepository, index repository.IndexRepository, assetKey string) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		client:    client,
		donations: donations,
		grants:    grants,
		index:     index,
		assetKey:  assetKey,
		now:       time.Now,
	}
}

func (s *PaymentServiceImpl) ProcessEvent(ctx context.Context, ev vipps.Event) (*model.DonationRecord, error) {
	if ev.Reference == "" || ev.Status == "" {
		return nil, ErrInvalidEvent
	}

	status := toModelStatus(ev.Status)
	switch status {
	case model.StatusAuthorized, model.StatusCaptured:
	case model.StatusCancelled, model.StatusFailed:
		return s.advanceExisting(ctx, ev.Reference, status)
	default:
		// CREATED and UNKNOWN never create records or grants.
		slog.Info("payment event ignored",
			"reference", ev.Reference, "status", string(status), "event_type", ev.EventType)
		return nil, nil
	}

	// Redelivery check: a reference that already produced a record must
	// not mint a second grant, only advance its status.
	existing, err := s.donations.FindByReference(ctx, ev.Reference)
	if err == nil {
		return s.advanceRecord(ctx, existing, status)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if status == model.StatusAuthorized {
		status = s.autoCapture(ctx, ev)
	}
	return s.issueGrant(ctx, ev, status)
}

func (s *PaymentServiceImpl) CaptureByReference(ctx context.Context, reference string) (*model.DonationRecord, error) {
	rec, err := s.donations.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status == model.StatusCaptured {
		return rec, nil
	}
	if rec.Status != model.StatusAuthorized {
		return nil, fmt.Errorf("%w: %s", ErrNotCapturable, rec.Status)
	}

	amount := vipps.Amount{Value: rec.Amount.Minor(), Currency: rec.Currency}
	if err := s.client.Capture(ctx, reference, amount, uuid.NewString()); err != nil {
		return nil, fmt.Errorf("capture %s: %w", reference, err)
	}
	return s.advanceRecord(ctx, rec, model.StatusCaptured)
}

// autoCapture attempts to capture the full authorized amount. Failure is
// deliberate "the admin can fix it later": the record is still written as
// AUTHORIZED and capture stays retryable through CaptureByReference.
func (s *PaymentServiceImpl) autoCapture(ctx context.Context, ev vipps.Event) model.PaymentStatus {
	amount := vipps.Amount{Value: ev.Amount.Value, Currency: ev.Amount.Currency}
	if err := s.client.Capture(ctx, ev.Reference, amount, uuid.NewString()); err != nil {
		slog.Warn("auto-capture failed, record kept as AUTHORIZED",
			"reference", ev.Reference, "error", err)
		return model.StatusAuthorized
	}
	return model.StatusCaptured
}

func (s *PaymentServiceImpl) issueGrant(ctx context.Context, ev vipps.Event, status model.PaymentStatus) (*model.DonationRecord, error) {
	downloadID, err := newDownloadID()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	grant := &model.DownloadGrant{
		DownloadID: downloadID,
		Reference:  ev.Reference,
		CreatedAt:  now,
		ExpiresAt:  now.Add(model.GrantTTL),
		AssetKey:   s.assetKey,
	}
	rec := &model.DonationRecord{
		Reference:  ev.Reference,
		Amount:     model.MajorAmount(ev.Amount.Value),
		Currency:   ev.Amount.Currency,
		Status:     status,
		Timestamp:  now,
		DownloadID: downloadID,
	}
	if ev.Profile != nil {
		rec.Name = ev.Profile.Name
		rec.Email = ev.Profile.Email
		rec.PhoneNumber = ev.Profile.PhoneNumber
	}

	// Grant first, record second. If the record write fails the webhook
	// returns 5xx and the redelivery mints a fresh pair; the orphaned
	// grant stays unusable because its donation record never existed.
	if err := s.grants.Put(ctx, grant); err != nil {
		return nil, err
	}
	if err := s.donations.Put(ctx, rec); err != nil {
		return nil, err
	}

	s.updateIndex(ctx, rec)
	return rec, nil
}

// advanceExisting applies a terminal event to a reference that may or may
// not have a record. References that never reached AUTHORIZED have
// nothing to advance.
func (s *PaymentServiceImpl) advanceExisting(ctx context.Context, reference string, status model.PaymentStatus) (*model.DonationRecord, error) {
	rec, err := s.donations.FindByReference(ctx, reference)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("terminal event for unknown reference", "reference", reference, "status", string(status))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.advanceRecord(ctx, rec, status)
}

// advanceRecord moves the stored status forward, never backward.
func (s *PaymentServiceImpl) advanceRecord(ctx context.Context, rec *model.DonationRecord, status model.PaymentStatus) (*model.DonationRecord, error) {
	next := model.AdvanceStatus(rec.Status, status)
	if next == rec.Status {
		return rec, nil
	}
	rec.Status = next
	if err := s.donations.Put(ctx, rec); err != nil {
		return nil, err
	}
	s.updateIndex(ctx, rec)
	return rec, nil
}

// updateIndex refreshes the admin listing. The grant is the source of
// truth; index failures are logged and swallowed.
func (s *PaymentServiceImpl) updateIndex(ctx context.Context, rec *model.DonationRecord) {
	if err := s.index.Upsert(ctx, rec.IndexEntry()); err != nil {
		slog.Error("donation index update failed", "reference", rec.Reference, "error", err)
	}
}

// newDownloadID returns 128 bits of crypto randomness as 22 URL-safe
// characters.
func newDownloadID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("download id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func toModelStatus(s vipps.Status) model.PaymentStatus {
	switch s {
	case vipps.StatusCreated:
		return model.StatusCreated
	case vipps.StatusAuthorized:
		return model.StatusAuthorized
	case vipps.StatusCaptured:
		return model.StatusCaptured
	case vipps.StatusCancelled:
		return model.StatusCancelled
	case vipps.StatusFailed:
		return model.StatusFailed
	default:
		return model.StatusUnknown
	}
}
