package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the audited operation.
type AuditAction string

const (
	AuditActionInit       AuditAction = "PAYMENT_INIT"
	AuditActionFormShow   AuditAction = "FORM_SHOW"
	AuditActionAuthorize  AuditAction = "AUTHORIZE"
	AuditActionConfirm    AuditAction = "CONFIRM"
	AuditActionCancel     AuditAction = "CANCEL"
	AuditActionReverse    AuditAction = "REVERSE"
	AuditActionRefund     AuditAction = "REFUND"
	AuditActionExpire     AuditAction = "EXPIRE"
	AuditActionRegister   AuditAction = "TEAM_REGISTER"
	AuditActionTeamUpdate AuditAction = "TEAM_UPDATE"
)

// Audit outcomes.
const (
	AuditOutcomeSuccess = "success"
	AuditOutcomeFailure = "failure"
)

// AuditLog is an append-only operational record, retained independent of the
// payment lifecycle. Details is a JSON string and must never carry card data.
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	Actor     string      `json:"actor"` // team slug, "admin" or "system"
	Action    AuditAction `json:"action"`
	PaymentID *string     `json:"payment_id,omitempty"`
	TeamSlug  *string     `json:"team_slug,omitempty"`
	Outcome   string      `json:"outcome"`
	Details   string      `json:"details,omitempty"`
	IPAddress string      `json:"ip_address,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
