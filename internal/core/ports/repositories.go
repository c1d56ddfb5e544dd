package ports

import (
	"context"
	"time"

	"hosted-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// TeamRepository defines persistence operations for teams.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetBySlug(ctx context.Context, slug string) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
	// RecordAuthFailure increments the failed-attempt counter and, when the
	// caller passes a non-nil lockedUntil, locks the team until then.
	RecordAuthFailure(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) error
	ResetAuthFailures(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository defines persistence operations for payments. Status
// writes use optimistic concurrency on the version column.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error)
	// GetByPaymentIDAny is the merchant-less lookup used by the hosted form.
	GetByPaymentIDAny(ctx context.Context, paymentID string) (*domain.Payment, error)
	ListByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error)
	// UpdateStatus persists the payment's mutated status fields with
	// WHERE version = payment.Version; a zero-row result surfaces as
	// domain.ErrVersionConflict. On success the in-memory version is bumped.
	UpdateStatus(ctx context.Context, payment *domain.Payment) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error)
	// Aggregates for daily/monthly limit checks.
	SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, error)
	CountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, error)
}

// TransactionRepository persists append-only bank call records.
type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	ListByPaymentID(ctx context.Context, paymentID string) ([]domain.Transaction, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
