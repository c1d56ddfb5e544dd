package postgres

import (
	"context"
	"fmt"

	"hosted-payment-gateway/internal/core/domain"
)

// TransactionRepo implements ports.TransactionRepository. Rows are append-only
// records of bank calls and are never updated.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a bank call record.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, payment_id, type, status, bank_ref, auth_code, rrn,
		response_code, response_message, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.PaymentID, t.Type, t.Status,
		t.BankRef, t.AuthCode, t.RRN,
		t.ResponseCode, t.ResponseMessage, t.Amount, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListByPaymentID fetches all bank call records for a payment, oldest first.
func (r *TransactionRepo) ListByPaymentID(ctx context.Context, paymentID string) ([]domain.Transaction, error) {
	query := `SELECT id, payment_id, type, status, bank_ref, auth_code, rrn,
		response_code, response_message, amount, created_at
		FROM transactions WHERE payment_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID, &t.PaymentID, &t.Type, &t.Status,
			&t.BankRef, &t.AuthCode, &t.RRN,
			&t.ResponseCode, &t.ResponseMessage, &t.Amount, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}
