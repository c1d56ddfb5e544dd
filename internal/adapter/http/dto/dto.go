package dto

import "encoding/json"

// Merchant API request bodies use the PascalCase field names of the wire
// protocol; responses are produced from the service result types.

// InitItem is one positional order item.
type InitItem struct {
	Name     string `json:"Name" binding:"required,max=100"`
	Price    int64  `json:"Price" binding:"gte=0"`
	Quantity int64  `json:"Quantity" binding:"gt=0"`
	Amount   int64  `json:"Amount" binding:"gt=0"`
}

// InitRequest is the request body for POST /api/v1/paymentinit/init.
type InitRequest struct {
	TeamSlug        string            `json:"TeamSlug" binding:"required,max=50"`
	Token           string            `json:"Token" binding:"required"`
	Amount          int64             `json:"Amount" binding:"required,gt=0"`
	Currency        string            `json:"Currency" binding:"required,len=3"`
	OrderID         string            `json:"OrderId" binding:"required,max=36,safe_id"`
	SuccessURL      *string           `json:"SuccessURL,omitempty" binding:"omitempty,safe_url"`
	FailURL         *string           `json:"FailURL,omitempty" binding:"omitempty,safe_url"`
	NotificationURL *string           `json:"NotificationURL,omitempty" binding:"omitempty,safe_url"`
	PaymentExpiry   int               `json:"PaymentExpiry,omitempty" binding:"omitempty,gte=0"`
	Email           *string           `json:"Email,omitempty" binding:"omitempty,email"`
	Language        string            `json:"Language,omitempty" binding:"omitempty,max=8"`
	Description     string            `json:"Description,omitempty" binding:"omitempty,max=250"`
	Items           []InitItem        `json:"Items,omitempty" binding:"omitempty,dive"`
	Data            map[string]string `json:"Data,omitempty"`
	Receipt         json.RawMessage   `json:"Receipt,omitempty"`
}

// ConfirmRequest is the request body for POST /api/v1/paymentconfirm/confirm.
type ConfirmRequest struct {
	TeamSlug    string            `json:"TeamSlug" binding:"required,max=50"`
	Token       string            `json:"Token" binding:"required"`
	PaymentID   string            `json:"PaymentId" binding:"required,max=64"`
	Amount      *int64            `json:"Amount,omitempty" binding:"omitempty,gt=0"`
	Description string            `json:"Description,omitempty" binding:"omitempty,max=250"`
	Data        map[string]string `json:"Data,omitempty"`
}

// CancelRequest is the request body for POST /api/v1/paymentcancel/cancel.
type CancelRequest struct {
	TeamSlug  string            `json:"TeamSlug" binding:"required,max=50"`
	Token     string            `json:"Token" binding:"required"`
	PaymentID string            `json:"PaymentId" binding:"required,max=64"`
	Amount    *int64            `json:"Amount,omitempty" binding:"omitempty,gt=0"`
	Data      map[string]string `json:"Data,omitempty"`
}

// CheckRequest is the request body for POST /api/v1/paymentcheck/check.
// The GET variant binds the same fields from the query string.
type CheckRequest struct {
	TeamSlug            string `json:"TeamSlug" form:"TeamSlug" binding:"required,max=50"`
	Token               string `json:"Token" form:"Token" binding:"required"`
	PaymentID           string `json:"PaymentId" form:"PaymentId" binding:"omitempty,max=64"`
	OrderID             string `json:"OrderId" form:"OrderId" binding:"omitempty,max=36"`
	IncludeCard         bool   `json:"IncludeCard" form:"IncludeCard"`
	IncludeTransactions bool   `json:"IncludeTransactions" form:"IncludeTransactions"`
	IncludeCustomer     bool   `json:"IncludeCustomer" form:"IncludeCustomer"`
	IncludeReceipt      bool   `json:"IncludeReceipt" form:"IncludeReceipt"`
	Language            string `json:"Language" form:"Language" binding:"omitempty,max=8"`
}

// SubmitRequest is the hosted-form POST body (urlencoded).
type SubmitRequest struct {
	PaymentID    string `form:"PaymentId" binding:"required,max=64"`
	SessionToken string `form:"SessionToken" binding:"required"`
	PAN          string `form:"PAN" binding:"required"`
	Expiry       string `form:"Expiry" binding:"required"`
	CVV          string `form:"CVV" binding:"required"`
	CardHolder   string `form:"CardHolder" binding:"omitempty,max=100"`
	Email        string `form:"Email" binding:"omitempty,email"`
}

// RegisterTeamRequest is the request body for team registration.
type RegisterTeamRequest struct {
	TeamSlug            string   `json:"TeamSlug" binding:"required,max=50"`
	Password            string   `json:"Password" binding:"required,min=8,max=128"`
	Name                string   `json:"Name" binding:"required,min=1,max=100"`
	Email               *string  `json:"Email,omitempty" binding:"omitempty,email"`
	Phone               *string  `json:"Phone,omitempty" binding:"omitempty,max=20"`
	SuccessURL          *string  `json:"SuccessURL,omitempty" binding:"omitempty,safe_url"`
	FailURL             *string  `json:"FailURL,omitempty" binding:"omitempty,safe_url"`
	NotificationURL     *string  `json:"NotificationURL,omitempty" binding:"omitempty,safe_url"`
	SupportedCurrencies []string `json:"SupportedCurrencies,omitempty"`
}

// TeamLimits mirrors the admin-editable limit fields.
type TeamLimits struct {
	MinAmount     int64 `json:"min_amount"`
	MaxAmount     int64 `json:"max_amount"`
	DailyAmount   int64 `json:"daily_amount"`
	DailyTxCount  int64 `json:"daily_tx_count"`
	MonthlyAmount int64 `json:"monthly_amount"`
}

// TeamFeatures mirrors the admin-editable feature flags.
type TeamFeatures struct {
	ThreeDS           bool `json:"three_ds"`
	Tokenization      bool `json:"tokenization"`
	Refunds           bool `json:"refunds"`
	PartialRefunds    bool `json:"partial_refunds"`
	Reversals         bool `json:"reversals"`
	Webhooks          bool `json:"webhooks"`
	WebhookRetries    bool `json:"webhook_retries"`
	WebhookTimeoutSec int  `json:"webhook_timeout_sec"`
}

// AdminTeamUpdateRequest is the request body for the admin team update.
// Nil fields are left unchanged.
type AdminTeamUpdateRequest struct {
	Name                *string       `json:"name,omitempty" binding:"omitempty,min=1,max=100"`
	IsActive            *bool         `json:"is_active,omitempty"`
	SupportedCurrencies []string      `json:"supported_currencies,omitempty"`
	Limits              *TeamLimits   `json:"limits,omitempty"`
	Features            *TeamFeatures `json:"features,omitempty"`
	NotificationURL     *string       `json:"notification_url,omitempty" binding:"omitempty,safe_url"`
}
