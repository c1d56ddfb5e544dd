package domain

import (
	"errors"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned by payment status writes when the optimistic
// version check matched zero rows: another writer got there first.
var ErrVersionConflict = errors.New("payment version conflict")

// Cache key builders. Keys are scoped per operation and per team so entries
// can never leak across merchants.

// CheckCacheKey keys a status-query response: ref is the payment or order id.
func CheckCacheKey(teamID uuid.UUID, ref, flags, lang string) string {
	return "chk:" + teamID.String() + ":" + ref + ":" + flags + ":" + lang
}

// ConfirmIdempotencyKey keys a successful confirm response by the caller's
// idempotency key.
func ConfirmIdempotencyKey(teamID uuid.UUID, key string) string {
	return "cfm:" + teamID.String() + ":" + key
}

// CancelIdempotencyKey keys a successful cancel response by the caller's
// external request id.
func CancelIdempotencyKey(teamID uuid.UUID, key string) string {
	return "cxl:" + teamID.String() + ":" + key
}

// PaymentTag tags check-cache entries touching a payment id, so mutations can
// invalidate every overlapping entry.
func PaymentTag(teamID uuid.UUID, paymentID string) string {
	return "chktag:" + teamID.String() + ":" + paymentID
}

// OrderTag tags check-cache entries touching an order id.
func OrderTag(teamID uuid.UUID, orderID string) string {
	return "chktag:" + teamID.String() + ":order:" + orderID
}
