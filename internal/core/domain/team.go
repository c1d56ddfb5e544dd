package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// SupportedCurrencies is the full set a team may enable.
var SupportedCurrencies = []string{"RUB", "USD", "EUR", "KZT", "BYN"}

var slugRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)

// reservedSlugs can never be registered as team slugs.
var reservedSlugs = map[string]struct{}{
	"admin": {}, "api": {}, "system": {}, "internal": {},
	"payment": {}, "health": {}, "metrics": {}, "test": {},
}

// IsValidSlug reports whether s is a registrable team slug.
func IsValidSlug(s string) bool {
	if !slugRe.MatchString(s) {
		return false
	}
	_, reserved := reservedSlugs[s]
	return !reserved
}

// TeamLimits holds per-team payment caps in minor units. Zero means "not set".
type TeamLimits struct {
	MinAmount     int64 `json:"min_amount"`
	MaxAmount     int64 `json:"max_amount"`
	DailyAmount   int64 `json:"daily_amount"`
	DailyTxCount  int64 `json:"daily_tx_count"`
	MonthlyAmount int64 `json:"monthly_amount"`
}

// TeamFeatures holds contract-level feature flags.
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

// Team is a registered merchant. PasswordHash guards the basic-auth surface;
// PasswordEnc is the same shared secret encrypted at rest, needed server-side
// to recompute merchant request tokens.
type Team struct {
	ID                  uuid.UUID    `json:"id"`
	Slug                string       `json:"slug"`
	PasswordHash        string       `json:"-"`
	PasswordEnc         string       `json:"-"`
	Name                string       `json:"name"`
	Email               string       `json:"email,omitempty"`
	Phone               string       `json:"phone,omitempty"`
	SuccessURL          *string      `json:"success_url,omitempty"`
	FailURL             *string      `json:"fail_url,omitempty"`
	NotificationURL     *string      `json:"notification_url,omitempty"`
	CancelURL           *string      `json:"cancel_url,omitempty"`
	SupportedCurrencies []string     `json:"supported_currencies"`
	Limits              TeamLimits   `json:"limits"`
	Features            TeamFeatures `json:"features"`
	FeePercent          float64      `json:"fee_percent"`
	FeeFixed            int64        `json:"fee_fixed"`
	FailedAuthAttempts  int          `json:"-"`
	LockedUntil         *time.Time   `json:"-"`
	IsActive            bool         `json:"is_active"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// IsLocked reports whether the team is under an auth lockout.
func (t *Team) IsLocked(now time.Time) bool {
	return t.LockedUntil != nil && now.Before(*t.LockedUntil)
}

// SupportsCurrency reports whether the team accepts the given currency.
func (t *Team) SupportsCurrency(currency string) bool {
	for _, c := range t.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// CheckAmount validates an amount against the team's per-payment bounds.
func (t *Team) CheckAmount(amount int64) bool {
	if t.Limits.MinAmount > 0 && amount < t.Limits.MinAmount {
		return false
	}
	if t.Limits.MaxAmount > 0 && amount > t.Limits.MaxAmount {
		return false
	}
	return true
}
