package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hosted-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payment_id, order_id, team_id, team_slug, amount, currency, status,
	description, success_url, fail_url, notification_url, email, language,
	expires_at, card_mask, receipt, metadata, version,
	created_at, updated_at, authorized_at, confirmed_at, cancelled_at, refunded_at`

// Create inserts a new payment.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PaymentID, p.OrderID, p.TeamID, p.TeamSlug,
		p.Amount, p.Currency, p.Status,
		p.Description, p.SuccessURL, p.FailURL, p.NotificationURL, p.Email, p.Language,
		p.ExpiresAt, p.CardMask, p.Receipt, p.Metadata, p.Version,
		p.CreatedAt, p.UpdatedAt, p.AuthorizedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByPaymentID fetches a payment by its public ID, scoped to a team.
func (r *PaymentRepo) GetByPaymentID(ctx context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE team_id = $1 AND payment_id = $2`
	return r.scanPayment(r.pool.QueryRow(ctx, query, teamID, paymentID))
}

// GetByPaymentIDAny fetches a payment by its public ID without a team scope.
// The hosted form is the only caller; the payment ID itself is the capability.
func (r *PaymentRepo) GetByPaymentIDAny(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

// ListByOrderID fetches every payment attempt for a merchant order, newest
// first.
func (r *PaymentRepo) ListByOrderID(ctx context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE team_id = $1 AND order_id = $2 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, teamID, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments by order: %w", err)
	}
	return collectPayments(rows)
}

// UpdateStatus persists the payment's mutable status fields guarded by the
// version column. Zero affected rows means a concurrent writer won; the
// caller decides whether to retry or give up.
func (r *PaymentRepo) UpdateStatus(ctx context.Context, p *domain.Payment) error {
	query := `UPDATE payments
		SET status=$1, card_mask=$2, version=version+1, updated_at=$3,
			authorized_at=$4, confirmed_at=$5, cancelled_at=$6, refunded_at=$7
		WHERE id=$8 AND version=$9`

	tag, err := r.pool.Exec(ctx, query,
		p.Status, p.CardMask, p.UpdatedAt,
		p.AuthorizedAt, p.ConfirmedAt, p.CancelledAt, p.RefundedAt,
		p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	p.Version++
	return nil
}

// ListExpired fetches payments whose deadline passed while still in a
// sweepable status.
func (r *PaymentRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = ANY($1) AND expires_at <= $2
		ORDER BY expires_at LIMIT $3`

	rows, err := r.pool.Query(ctx, query, domain.SweepableStatuses(), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired payments: %w", err)
	}
	return collectPayments(rows)
}

// SumAmountSince returns the total initialized amount for a team since the
// given instant. Used for daily/monthly volume limits.
func (r *PaymentRepo) SumAmountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE team_id = $1 AND created_at >= $2`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, teamID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum payment amount: %w", err)
	}
	return sum, nil
}

// CountSince returns the number of payments a team initialized since the
// given instant.
func (r *PaymentRepo) CountSince(ctx context.Context, teamID uuid.UUID, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM payments WHERE team_id = $1 AND created_at >= $2`

	var count int64
	if err := r.pool.QueryRow(ctx, query, teamID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}
	return count, nil
}

func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := scanPaymentFields(row, p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}

func scanPaymentFields(row pgx.Row, p *domain.Payment) error {
	return row.Scan(
		&p.ID, &p.PaymentID, &p.OrderID, &p.TeamID, &p.TeamSlug,
		&p.Amount, &p.Currency, &p.Status,
		&p.Description, &p.SuccessURL, &p.FailURL, &p.NotificationURL, &p.Email, &p.Language,
		&p.ExpiresAt, &p.CardMask, &p.Receipt, &p.Metadata, &p.Version,
		&p.CreatedAt, &p.UpdatedAt, &p.AuthorizedAt, &p.ConfirmedAt, &p.CancelledAt, &p.RefundedAt,
	)
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := scanPaymentFields(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return payments, nil
}
