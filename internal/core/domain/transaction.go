package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType is the kind of bank-adapter call a transaction records.
type TransactionType string

const (
	TransactionTypeAuthorize TransactionType = "AUTHORIZE"
	TransactionTypeCapture   TransactionType = "CAPTURE"
	TransactionTypeReverse   TransactionType = "REVERSE"
	TransactionTypeRefund    TransactionType = "REFUND"
)

// TransactionStatus is the outcome of a bank-adapter call.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusDeclined TransactionStatus = "DECLINED"
	TransactionStatusError    TransactionStatus = "ERROR"
)

// Transaction is an append-only record of one bank-adapter call. Rows are
// never updated once written with a terminal status.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	PaymentID       string            `json:"payment_id"` // public "pay_..." token
	Type            TransactionType   `json:"type"`
	Status          TransactionStatus `json:"status"`
	BankRef         string            `json:"bank_ref,omitempty"`
	AuthCode        string            `json:"auth_code,omitempty"`
	RRN             string            `json:"rrn,omitempty"`
	ResponseCode    string            `json:"response_code,omitempty"`
	ResponseMessage string            `json:"response_message,omitempty"`
	Amount          int64             `json:"amount"`
	CreatedAt       time.Time         `json:"created_at"`
}
