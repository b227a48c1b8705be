package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GrantTTL is how long a download grant stays usable after issuance.
const GrantTTL = 7 * 24 * time.Hour

// MajorAmount holds a monetary amount in minor units but serializes as a
// major-unit decimal with two fraction digits (25000 øre ⇒ 250.00), so a
// persisted record round-trips without floating-point drift.
type MajorAmount int64

// Minor returns the amount in minor units.
func (a MajorAmount) Minor() int64 { return int64(a) }

func (a MajorAmount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON emits the amount as a plain decimal number, e.g. 250.00.
func (a MajorAmount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a decimal with up to two fraction digits, quoted or
// not, and converts it to minor units using integer arithmetic only.
func (a *MajorAmount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	sign := int64(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	major, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return fmt.Errorf("amount: parse %q: %w", s, err)
	}
	var minor int64
	switch len(fracPart) {
	case 0:
	case 1:
		fracPart += "0"
		fallthrough
	case 2:
		minor, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return fmt.Errorf("amount: parse %q: %w", s, err)
		}
	default:
		return fmt.Errorf("amount: %q has more than two fraction digits", s)
	}
	*a = MajorAmount(sign * (major*100 + minor))
	return nil
}

// DonationRecord is the authoritative persisted record for one payment
// reference. It is created on the first AUTHORIZED or CAPTURED event and
// afterwards mutated only to advance its status; it is never deleted.
type DonationRecord struct {
	Reference   string        `json:"reference"`
	Amount      MajorAmount   `json:"amount"`
	Currency    string        `json:"currency"`
	Status      PaymentStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Name        string        `json:"name,omitempty"`
	Email       string        `json:"email,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	DownloadID  string        `json:"download_id"`
}

// DownloadGrant authorizes one logical download flow. Grants stay valid for
// repeat downloads until ExpiresAt; Used is advisory and recorded
// best-effort for admin visibility.
type DownloadGrant struct {
	DownloadID string    `json:"download_id"`
	Reference  string    `json:"reference"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Used       bool      `json:"used"`
	AssetKey   string    `json:"asset_key,omitempty"`
}

// Expired reports whether the grant is past its usability window.
func (g *DownloadGrant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

// DonationIndexEntry is the denormalized projection of a DonationRecord
// kept in the shared listing index.
type DonationIndexEntry struct {
	Reference  string        `json:"reference"`
	Amount     MajorAmount   `json:"amount"`
	Currency   string        `json:"currency"`
	Status     PaymentStatus `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	DownloadID string        `json:"download_id"`
}

// IndexEntry projects the record into its listing form.
func (d *DonationRecord) IndexEntry() DonationIndexEntry {
	return DonationIndexEntry{
		Reference:  d.Reference,
		Amount:     d.Amount,
		Currency:   d.Currency,
		Status:     d.Status,
		Timestamp:  d.Timestamp,
		DownloadID: d.DownloadID,
	}
}

// DonationIndex is the single shared index document used for admin listing.
// The authoritative data lives in the per-reference DonationRecords.
type DonationIndex struct {
	Entries []DonationIndexEntry `json:"entries"`
}

// Upsert replaces the entry for e.Reference or appends it.
func (ix *DonationIndex) Upsert(e DonationIndexEntry) {
	for i := range ix.Entries {
		if ix.Entries[i].Reference == e.Reference {
			ix.Entries[i] = e
			return
		}
	}
	ix.Entries = append(ix.Entries, e)
}
