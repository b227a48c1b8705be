package vipps

import (
	"encoding/json"
	"errors"
	"strings"
)

// Status is the canonical payment state an inbound notification normalizes
// to, regardless of which API version produced it.
type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusAuthorized Status = "AUTHORIZED"
	StatusCaptured   Status = "CAPTURED"
	StatusCancelled  Status = "CANCELLED"
	StatusFailed     Status = "FAILED"
	StatusUnknown    Status = "UNKNOWN"
)

// Amount is a monetary amount in minor units.
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

// UserProfile carries optional donor details from a notification.
type UserProfile struct {
	Name        string
	Email       string
	PhoneNumber string
}

// Event is one normalized payment notification.
type Event struct {
	Reference string
	EventType string
	Status    Status
	Amount    Amount
	Profile   *UserProfile
}

// ErrInvalidEvent is returned for payloads that carry no usable reference
// or no status-bearing field in any known schema. Such payloads are the
// sender's fault and should not be redelivered.
var ErrInvalidEvent = errors.New("vipps: invalid event")

// ParseEvent normalizes a raw notification body into an Event. The
// provider has shipped at least three payload shapes across API versions;
// each gets its own decoder, tried in order, all converging on the same
// canonical Event. Recognized shapes with unrecognized status vocabulary
// normalize to StatusUnknown rather than failing.
func ParseEvent(payload []byte) (Event, error) {
	for _, parse := range []func([]byte) (Event, bool){
		parseWebhookV1,
		parseLegacyCallback,
		parsePollingState,
	} {
		if ev, ok := parse(payload); ok {
			if ev.Reference == "" {
				return Event{}, ErrInvalidEvent
			}
			if ev.Amount.Currency == "" {
				ev.Amount.Currency = "NOK"
			}
			return ev, nil
		}
	}
	return Event{}, ErrInvalidEvent
}

// parseWebhookV1 handles the epayment webhook shape:
//
//	{"reference": "...", "name": "AUTHORIZED", "amount": {"value": 10000, "currency": "NOK"}}
func parseWebhookV1(payload []byte) (Event, bool) {
	var raw struct {
		Reference string  `json:"reference"`
		Name      string  `json:"name"`
		Amount    *Amount `json:"amount"`
		UserInfo  *struct {
			Name        string `json:"name"`
			Email       string `json:"email"`
			PhoneNumber string `json:"phoneNumber"`
		} `json:"userProfile"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.Name == "" {
		return Event{}, false
	}

	ev := Event{Reference: raw.Reference, EventType: raw.Name, Status: webhookStatus(raw.Name)}
	if raw.Amount != nil {
		ev.Amount = *raw.Amount
	}
	if raw.UserInfo != nil {
		ev.Profile = &UserProfile{
			Name:        raw.UserInfo.Name,
			Email:       raw.UserInfo.Email,
			PhoneNumber: raw.UserInfo.PhoneNumber,
		}
	}
	return ev, true
}

func webhookStatus(name string) Status {
	// Event names arrive either bare ("AUTHORIZED") or fully qualified
	// ("epayments.payment.authorized.v1").
	n := strings.ToUpper(name)
	if i := strings.LastIndex(n, "."); i >= 0 && strings.HasSuffix(n, ".V1") {
		parts := strings.Split(n, ".")
		if len(parts) >= 2 {
			n = parts[len(parts)-2]
		}
	}
	switch n {
	case "CREATED":
		return StatusCreated
	case "AUTHORIZED", "RESERVED":
		return StatusAuthorized
	case "CAPTURED":
		return StatusCaptured
	case "CANCELLED", "TERMINATED", "ABORTED":
		return StatusCancelled
	case "FAILED", "EXPIRED", "REJECTED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// parseLegacyCallback handles the ecom v2 callback shape:
//
//	{"orderId": "...", "transactionInfo": {"status": "RESERVED", "amount": 10000}}
func parseLegacyCallback(payload []byte) (Event, bool) {
	var raw struct {
		OrderID         string `json:"orderId"`
		TransactionInfo *struct {
			Status string `json:"status"`
			Amount int64  `json:"amount"`
		} `json:"transactionInfo"`
		UserDetails *struct {
			FirstName    string `json:"firstName"`
			LastName     string `json:"lastName"`
			Email        string `json:"email"`
			MobileNumber string `json:"mobileNumber"`
		} `json:"userDetails"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.TransactionInfo == nil {
		return Event{}, false
	}

	ev := Event{
		Reference: raw.OrderID,
		EventType: raw.TransactionInfo.Status,
		Status:    legacyStatus(raw.TransactionInfo.Status),
		Amount:    Amount{Value: raw.TransactionInfo.Amount, Currency: "NOK"},
	}
	if raw.UserDetails != nil {
		ev.Profile = &UserProfile{
			Name:        strings.TrimSpace(raw.UserDetails.FirstName + " " + raw.UserDetails.LastName),
			Email:       raw.UserDetails.Email,
			PhoneNumber: raw.UserDetails.MobileNumber,
		}
	}
	return ev, true
}

func legacyStatus(s string) Status {
	switch strings.ToUpper(s) {
	case "INITIATE", "REGISTER":
		return StatusCreated
	case "RESERVE", "RESERVED":
		return StatusAuthorized
	case "SALE", "CAPTURE", "CAPTURED":
		return StatusCaptured
	case "CANCEL", "CANCELLED", "VOID":
		return StatusCancelled
	case "FAILED", "REJECTED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// parsePollingState handles the epayment GET-payment shape:
//
//	{"reference": "...", "state": "AUTHORIZED", "aggregate": {"authorizedAmount": {...}}}
func parsePollingState(payload []byte) (Event, bool) {
	var raw struct {
		Reference string `json:"reference"`
		State     string `json:"state"`
		Aggregate *struct {
			AuthorizedAmount *Amount `json:"authorizedAmount"`
			CapturedAmount   *Amount `json:"capturedAmount"`
		} `json:"aggregate"`
		Profile *struct {
			Name        string `json:"name"`
			Email       string `json:"email"`
			PhoneNumber string `json:"phoneNumber"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil || raw.State == "" {
		return Event{}, false
	}

	ev := Event{Reference: raw.Reference, EventType: raw.State, Status: webhookStatus(raw.State)}
	// Amount lives under different aggregate keys depending on how far the
	// payment has progressed; try captured first, then authorized.
	if raw.Aggregate != nil {
		switch {
		case raw.Aggregate.CapturedAmount != nil && raw.Aggregate.CapturedAmount.Value > 0:
			ev.Amount = *raw.Aggregate.CapturedAmount
		case raw.Aggregate.AuthorizedAmount != nil:
			ev.Amount = *raw.Aggregate.AuthorizedAmount
		}
	}
	if raw.Profile != nil {
		ev.Profile = &UserProfile{
			Name:        raw.Profile.Name,
			Email:       raw.Profile.Email,
			PhoneNumber: raw.Profile.PhoneNumber,
		}
	}
	return ev, true
}
