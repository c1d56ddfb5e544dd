package domain

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	StatusInit              PaymentStatus = "INIT"
	StatusNew               PaymentStatus = "NEW"
	StatusFormShowed        PaymentStatus = "FORM_SHOWED"
	StatusAuthorizing       PaymentStatus = "AUTHORIZING"
	StatusAuthorized        PaymentStatus = "AUTHORIZED"
	StatusAuthFail          PaymentStatus = "AUTH_FAIL"
	StatusConfirming        PaymentStatus = "CONFIRMING"
	StatusConfirmed         PaymentStatus = "CONFIRMED"
	StatusCompleted         PaymentStatus = "COMPLETED"
	StatusCaptured          PaymentStatus = "CAPTURED"
	StatusRejected          PaymentStatus = "REJECTED"
	StatusCancelled         PaymentStatus = "CANCELLED"
	StatusRefunded          PaymentStatus = "REFUNDED"
	StatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
	StatusFailed            PaymentStatus = "FAILED"
	StatusExpired           PaymentStatus = "EXPIRED"
	StatusDeadlineExpired   PaymentStatus = "DEADLINE_EXPIRED"
	StatusProcessing        PaymentStatus = "PROCESSING"
)

// transitions is the declarative edge table of the payment state machine.
// Any status write not listed here must be rejected before it reaches storage.
var transitions = map[PaymentStatus][]PaymentStatus{
	StatusInit:        {StatusNew, StatusFormShowed, StatusCancelled, StatusExpired},
	StatusNew:         {StatusFormShowed, StatusCancelled, StatusExpired},
	StatusFormShowed:  {StatusAuthorizing, StatusAuthFail, StatusRejected, StatusExpired},
	StatusAuthorizing: {StatusAuthorized, StatusAuthFail, StatusRejected, StatusFailed, StatusDeadlineExpired},
	StatusAuthorized:  {StatusConfirming, StatusCancelled, StatusDeadlineExpired},
	// CONFIRMING may roll back to AUTHORIZED when the bank capture fails.
	StatusConfirming:        {StatusConfirmed, StatusAuthorized, StatusFailed},
	StatusConfirmed:         {StatusCaptured, StatusCompleted, StatusRefunded, StatusPartiallyRefunded},
	StatusCaptured:          {StatusCompleted, StatusRefunded, StatusPartiallyRefunded},
	StatusCompleted:         {StatusRefunded, StatusPartiallyRefunded},
	StatusPartiallyRefunded: {StatusRefunded},
	StatusProcessing:        {StatusExpired},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to PaymentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsFinal reports whether the status has no outgoing edges.
func (s PaymentStatus) IsFinal() bool {
	return len(transitions[s]) == 0
}

// IsCacheStable reports whether a status is settled enough for the long
// status-cache TTL: the payment either reached a final state or a captured
// state that only a refund can move.
func (s PaymentStatus) IsCacheStable() bool {
	switch s {
	case StatusConfirmed, StatusCaptured, StatusCompleted,
		StatusCancelled, StatusRefunded, StatusRejected,
		StatusAuthFail, StatusFailed, StatusExpired, StatusDeadlineExpired:
		return true
	}
	return false
}

// ExpiryTarget returns the status an overdue payment moves to under the
// expiry sweep, or "" when the status is not sweepable.
func (s PaymentStatus) ExpiryTarget() PaymentStatus {
	switch s {
	case StatusInit, StatusNew, StatusFormShowed, StatusProcessing:
		return StatusExpired
	case StatusAuthorizing, StatusAuthorized:
		return StatusDeadlineExpired
	}
	return ""
}

// SweepableStatuses lists every status the expiry sweep scans for.
func SweepableStatuses() []PaymentStatus {
	return []PaymentStatus{
		StatusInit, StatusNew, StatusFormShowed, StatusProcessing,
		StatusAuthorizing, StatusAuthorized,
	}
}
