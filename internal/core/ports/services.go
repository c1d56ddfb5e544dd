package ports

import (
	"context"
	"encoding/json"
	"time"

	"hosted-payment-gateway/internal/core/domain"
)

// EncryptionService handles AES-256-GCM encryption/decryption of the
// team shared secret at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenService builds and verifies merchant request tokens: the sorted
// concatenation of the signed root parameters plus the team password,
// hashed with SHA-256.
type TokenService interface {
	Build(params map[string]string, password string) string
	// Verify compares in constant time.
	Verify(params map[string]string, password, token string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// SessionService binds a hosted-form render to its submit with a short-lived
// signed token, so a POST cannot target an arbitrary payment.
type SessionService interface {
	IssueFormSession(paymentID string, ttl time.Duration) (string, error)
	// ValidateFormSession returns the payment id the session was issued for.
	ValidateFormSession(token string) (string, error)
}

// ReplayStore tracks signed payloads seen within the replay window. Checking
// and marking are separate so a failed operation stays retryable: the marker
// is written only after the mutation succeeded.
type ReplayStore interface {
	// Seen reports whether the marker was already recorded in its scope.
	Seen(ctx context.Context, scope, marker string) (bool, error)
	// Mark records the marker for the window.
	Mark(ctx context.Context, scope, marker string, ttl time.Duration) error
}

// StatusCache is the shared response cache for status queries and
// confirm/cancel idempotency. Entries are immutable once written.
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetTagged additionally registers the key under invalidation tags.
	SetTagged(ctx context.Context, key string, value []byte, ttl time.Duration, tags []string) error
	// InvalidateTags drops every entry registered under the given tags.
	InvalidateTags(ctx context.Context, tags ...string) error
}

// Metrics is the process-wide metrics sink. Implementations must accept
// concurrent calls.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	AddCounter(name string, value float64, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	AddGauge(name string, delta float64, labels map[string]string)
}

// --- Bank adapter ---

// BankAuthorizeRequest carries card data to the bank. It lives in memory
// only; nothing here may be logged or persisted except the masked PAN.
type BankAuthorizeRequest struct {
	PaymentID string
	PAN       string
	Expiry    string // MM/YY
	CVV       string
	Amount    int64
	Currency  string
}

// BankResult is the outcome of a bank call. A transport or bank-side error
// is returned as a non-nil error instead; Approved=false means a decline.
type BankResult struct {
	Approved        bool
	BankRef         string
	AuthCode        string
	RRN             string
	MaskedPAN       string
	ResponseCode    string
	ResponseMessage string
}

// BankAdapter abstracts the acquiring bank. Timeouts and retries are the
// adapter's concern; the engine never auto-retries across the network.
type BankAdapter interface {
	Authorize(ctx context.Context, req BankAuthorizeRequest) (*BankResult, error)
	Capture(ctx context.Context, paymentID, bankRef string, amount int64) (*BankResult, error)
	Release(ctx context.Context, paymentID, bankRef string) (*BankResult, error)
	Refund(ctx context.Context, paymentID, bankRef string, amount int64) (*BankResult, error)
}

// --- Authenticator ---

// AuthScope names the operation a merchant token is bound to.
type AuthScope string

const (
	ScopeInit    AuthScope = "payment_init"
	ScopeConfirm AuthScope = "payment_confirm"
	ScopeCancel  AuthScope = "payment_cancel"
	ScopeCheck   AuthScope = "payment_check"
)

// AuthService validates merchant, admin and basic-auth credentials.
type AuthService interface {
	// AuthenticateMerchant verifies the request token over the operation's
	// signed parameter set and returns the team on success. Failed token
	// checks count toward the team lockout.
	AuthenticateMerchant(ctx context.Context, scope AuthScope, teamSlug, token string, params map[string]string) (*domain.Team, error)
	// CheckReplay rejects a signed payload already marked inside the replay
	// window and otherwise returns a server-assigned request id. It never
	// records anything itself.
	CheckReplay(ctx context.Context, scope AuthScope, team *domain.Team, token string) (requestID string, err error)
	// MarkReplay records the signed payload after the operation succeeded,
	// arming the replay window for identical retries.
	MarkReplay(ctx context.Context, scope AuthScope, team *domain.Team, token string) error
	AuthenticateBasic(ctx context.Context, slug, password string) (*domain.Team, error)
	AuthenticateAdmin(token string) error
}

// --- Lifecycle engine ---

// InitItem is one positional order item; item amounts must sum to the
// payment amount within one minor unit.
type InitItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
	Amount   int64  `json:"amount"`
}

// InitRequest holds validated input for payment initialization.
type InitRequest struct {
	TeamSlug        string
	Token           string
	Amount          int64
	Currency        string
	OrderID         string
	SuccessURL      *string
	FailURL         *string
	NotificationURL *string
	PaymentExpiry   int // minutes; 0 = config default
	Email           *string
	Language        string
	Description     string
	Items           []InitItem
	Data            map[string]string
	Receipt         json.RawMessage
	ClientIP        string
}

// InitResult is the successful init response.
type InitResult struct {
	PaymentID  string               `json:"paymentId"`
	OrderID    string               `json:"orderId"`
	Status     domain.PaymentStatus `json:"status"`
	Amount     int64                `json:"amount"`
	Currency   string               `json:"currency"`
	PaymentURL string               `json:"paymentUrl"`
	ExpiresAt  time.Time            `json:"expiresAt"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// ConfirmRequest holds validated input for capturing an authorized payment.
type ConfirmRequest struct {
	TeamSlug    string
	Token       string
	PaymentID   string
	Amount      *int64 // must equal the authorized amount when present
	Description string
	Data        map[string]string
	ClientIP    string
}

// ConfirmResult is the successful confirm response.
type ConfirmResult struct {
	PaymentID string               `json:"paymentId"`
	OrderID   string               `json:"orderId"`
	Status    domain.PaymentStatus `json:"status"`
	Amount    int64                `json:"amount"`
}

// CancelOperation is the concrete operation the cancel engine selected.
type CancelOperation string

const (
	OperationFullCancellation CancelOperation = "FULL_CANCELLATION"
	OperationFullReversal     CancelOperation = "FULL_REVERSAL"
	OperationFullRefund       CancelOperation = "FULL_REFUND"
)

// CancelRequest holds validated input for the cancel/reverse/refund path.
type CancelRequest struct {
	TeamSlug  string
	Token     string
	PaymentID string
	Amount    *int64 // partial amounts produce a warning; full op is performed
	Data      map[string]string
	ClientIP  string
}

// CancelResult is the successful cancel response.
type CancelResult struct {
	PaymentID      string               `json:"paymentId"`
	OrderID        string               `json:"orderId"`
	Status         domain.PaymentStatus `json:"status"`
	Operation      CancelOperation      `json:"operation"`
	OriginalAmount int64                `json:"originalAmount"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// PaymentService is the lifecycle engine.
type PaymentService interface {
	Init(ctx context.Context, req InitRequest) (*InitResult, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
}

// --- Status query ---

// CheckRequest holds validated input for a status query. PaymentID takes
// precedence over OrderID when both are set.
type CheckRequest struct {
	TeamSlug            string
	Token               string
	PaymentID           string
	OrderID             string
	IncludeCard         bool
	IncludeTransactions bool
	IncludeCustomer     bool
	IncludeReceipt      bool
	Language            string
}

// TransactionView is a transaction as exposed to merchants.
type TransactionView struct {
	Type            domain.TransactionType   `json:"type"`
	Status          domain.TransactionStatus `json:"status"`
	AuthCode        string                   `json:"authCode,omitempty"`
	RRN             string                   `json:"rrn,omitempty"`
	ResponseCode    string                   `json:"responseCode,omitempty"`
	ResponseMessage string                   `json:"responseMessage,omitempty"`
	Amount          int64                    `json:"amount"`
	CreatedAt       time.Time                `json:"createdAt"`
}

// PaymentView is a payment as exposed by the status query; optional blocks
// appear only when the matching include flag was set.
type PaymentView struct {
	PaymentID    string               `json:"paymentId"`
	OrderID      string               `json:"orderId"`
	Status       domain.PaymentStatus `json:"status"`
	Amount       int64                `json:"amount"`
	Currency     string               `json:"currency"`
	Description  string               `json:"description,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	ExpiresAt    time.Time            `json:"expiresAt"`
	CardMask     string               `json:"cardMask,omitempty"`
	Email        *string              `json:"email,omitempty"`
	Receipt      json.RawMessage      `json:"receipt,omitempty"`
	Transactions []TransactionView    `json:"transactions,omitempty"`
}

// CheckResult is the status-query response; also the cached payload.
type CheckResult struct {
	Payments []PaymentView `json:"payments"`
}

// StatusService answers status queries with status-aware caching.
type StatusService interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResult, error)
}

// --- Hosted form ---

// FormPage is rendered HTML for the hosted form or a status page.
type FormPage struct {
	HTML string
}

// SubmitRequest holds the hosted-form POST fields.
type SubmitRequest struct {
	PaymentID    string
	SessionToken string
	PAN          string
	Expiry       string
	CVV          string
	CardHolder   string
	Email        string
	ClientIP     string
}

// SubmitResult tells the handler where to send the cardholder next.
type SubmitResult struct {
	Status      domain.PaymentStatus
	RedirectURL string
}

// FormService drives the hosted card form.
type FormService interface {
	Render(ctx context.Context, paymentID string) (*FormPage, error)
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)
	ResultPage(ctx context.Context, paymentID string) (*FormPage, error)
}

// --- Teams ---

// RegisterTeamRequest holds validated registration input.
type RegisterTeamRequest struct {
	TeamSlug            string
	Password            string
	Name                string
	Email               string
	Phone               string
	SuccessURL          *string
	FailURL             *string
	NotificationURL     *string
	SupportedCurrencies []string
	ClientIP            string
}

// RegisterTeamResult is the registration response.
type RegisterTeamResult struct {
	TeamSlug  string    `json:"teamSlug"`
	CreatedAt time.Time `json:"createdAt"`
}

// TeamUpdate carries admin-editable team fields; nil means "leave as is".
type TeamUpdate struct {
	Name                *string
	IsActive            *bool
	SupportedCurrencies []string
	Limits              *domain.TeamLimits
	Features            *domain.TeamFeatures
	NotificationURL     *string
}

// TeamService covers registration, self-service profile and admin updates.
type TeamService interface {
	Register(ctx context.Context, req RegisterTeamRequest) (*RegisterTeamResult, error)
	Profile(ctx context.Context, team *domain.Team) *domain.Team
	AdminUpdate(ctx context.Context, slug string, upd TeamUpdate) (*domain.Team, error)
}

// AuditService records audit entries (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
