package model

// PaymentStatus is the canonical payment state used internally regardless
// of the vocabulary of the inbound provider notification.
type PaymentStatus string

const (
	StatusCreated    PaymentStatus = "CREATED"
	StatusAuthorized PaymentStatus = "AUTHORIZED"
	StatusCaptured   PaymentStatus = "CAPTURED"
	StatusCancelled  PaymentStatus = "CANCELLED"
	StatusFailed     PaymentStatus = "FAILED"
	StatusUnknown    PaymentStatus = "UNKNOWN"
)

// statusRank orders statuses so that a stored status only ever advances.
// Webhook deliveries may arrive duplicated or out of order; a CAPTURED
// notification must survive a late AUTHORIZED one.
var statusRank = map[PaymentStatus]int{
	StatusUnknown:    0,
	StatusCreated:    1,
	StatusAuthorized: 2,
	StatusCancelled:  3,
	StatusFailed:     3,
	StatusCaptured:   4,
}

// AdvanceStatus returns next if it ranks above cur, otherwise cur.
func AdvanceStatus(cur, next PaymentStatus) PaymentStatus {
	if statusRank[next] > statusRank[cur] {
		return next
	}
	return cur
}

// Downloadable reports whether a payment in this status unlocks a download.
// CREATED is deliberately excluded: a payment that was never authorized
// must not release the asset.
func (s PaymentStatus) Downloadable() bool {
	return s == StatusAuthorized || s == StatusCaptured
}
