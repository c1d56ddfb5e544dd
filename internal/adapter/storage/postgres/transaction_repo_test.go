package postgres

import (
	"context"
	"testing"
	"time"

	"hosted-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction() *domain.Transaction {
	return &domain.Transaction{
		ID:           uuid.New(),
		PaymentID:    domain.NewPaymentID(),
		Type:         domain.TransactionTypeAuthorize,
		Status:       domain.TransactionStatusApproved,
		BankRef:      "bnk_00000001",
		AuthCode:     "123456",
		RRN:          "000000000001",
		ResponseCode: "00",
		Amount:       150000,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	tx := newTestTransaction()

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(tx.ID, tx.PaymentID, tx.Type, tx.Status,
			tx.BankRef, tx.AuthCode, tx.RRN,
			tx.ResponseCode, tx.ResponseMessage, tx.Amount, tx.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), tx)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_ListByPaymentID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	tx := newTestTransaction()

	rows := pgxmock.NewRows([]string{
		"id", "payment_id", "type", "status", "bank_ref", "auth_code", "rrn",
		"response_code", "response_message", "amount", "created_at",
	}).AddRow(
		tx.ID, tx.PaymentID, tx.Type, tx.Status, tx.BankRef, tx.AuthCode, tx.RRN,
		tx.ResponseCode, tx.ResponseMessage, tx.Amount, tx.CreatedAt,
	)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE payment_id").
		WithArgs(tx.PaymentID).
		WillReturnRows(rows)

	result, err := repo.ListByPaymentID(context.Background(), tx.PaymentID)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, tx.BankRef, result[0].BankRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}
