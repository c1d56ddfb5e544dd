package domain

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Data keys with defined semantics. Everything else in Payment.Metadata is
// opaque merchant data and never drives gateway logic.
const (
	DataKeyIdempotency       = "idempotencyKey"
	DataKeyExternalRequestID = "externalRequestId"
)

// Payment is the aggregate the lifecycle engine operates on. Status writes
// go through the optimistic Version column; terminal statuses never mutate.
type Payment struct {
	ID              uuid.UUID         `json:"id"`
	PaymentID       string            `json:"payment_id"` // public "pay_..." token
	OrderID         string            `json:"order_id"`
	TeamID          uuid.UUID         `json:"team_id"`
	TeamSlug        string            `json:"team_slug"`
	Amount          int64             `json:"amount"` // minor units
	Currency        string            `json:"currency"`
	Status          PaymentStatus     `json:"status"`
	Description     string            `json:"description,omitempty"`
	SuccessURL      *string           `json:"success_url,omitempty"`
	FailURL         *string           `json:"fail_url,omitempty"`
	NotificationURL *string           `json:"notification_url,omitempty"`
	Email           *string           `json:"email,omitempty"`
	Language        string            `json:"language,omitempty"`
	ExpiresAt       time.Time         `json:"expires_at"`
	CardMask        string            `json:"card_mask,omitempty"`
	Receipt         json.RawMessage   `json:"receipt,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Version         int64             `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	AuthorizedAt    *time.Time        `json:"authorized_at,omitempty"`
	ConfirmedAt     *time.Time        `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time        `json:"refunded_at,omitempty"`
}

// NewPaymentID returns a fresh public payment identifier: "pay_" + 32 hex.
func NewPaymentID() string {
	u := uuid.New()
	return "pay_" + hex.EncodeToString(u[:])
}

// IsExpired reports whether the payment deadline has passed.
func (p *Payment) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// ApplyStatus moves the payment to the given status and stamps the matching
// timestamp column. The caller must have verified the edge via CanTransition;
// the repository enforces the version check.
func (p *Payment) ApplyStatus(to PaymentStatus, now time.Time) {
	p.Status = to
	p.UpdatedAt = now
	switch to {
	case StatusAuthorized:
		t := now
		p.AuthorizedAt = &t
	case StatusConfirmed:
		t := now
		p.ConfirmedAt = &t
	case StatusCancelled:
		t := now
		p.CancelledAt = &t
	case StatusRefunded, StatusPartiallyRefunded:
		t := now
		p.RefundedAt = &t
	}
}
