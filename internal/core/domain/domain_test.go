package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to PaymentStatus }{
		{StatusInit, StatusNew},
		{StatusNew, StatusFormShowed},
		{StatusFormShowed, StatusAuthorizing},
		{StatusAuthorizing, StatusAuthorized},
		{StatusAuthorized, StatusConfirming},
		{StatusConfirming, StatusConfirmed},
		{StatusConfirming, StatusAuthorized}, // capture failed, roll back
		{StatusAuthorized, StatusCancelled},
		{StatusConfirmed, StatusRefunded},
		{StatusCompleted, StatusRefunded},
		{StatusPartiallyRefunded, StatusRefunded},
		{StatusNew, StatusExpired},
		{StatusAuthorized, StatusDeadlineExpired},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to PaymentStatus }{
		{StatusNew, StatusAuthorized},    // skipping the form
		{StatusConfirmed, StatusNew},     // no going back
		{StatusCancelled, StatusNew},     // terminal
		{StatusRefunded, StatusRefunded}, // no self loops
		{StatusExpired, StatusFormShowed},
		{StatusAuthFail, StatusAuthorizing},
		{StatusConfirmed, StatusCancelled}, // captured money needs a refund
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestPaymentStatus_IsFinal(t *testing.T) {
	for _, s := range []PaymentStatus{
		StatusCancelled, StatusRefunded, StatusRejected, StatusAuthFail,
		StatusFailed, StatusExpired, StatusDeadlineExpired,
	} {
		assert.True(t, s.IsFinal(), "%s should be final", s)
	}
	for _, s := range []PaymentStatus{
		StatusNew, StatusAuthorized, StatusConfirming, StatusConfirmed, StatusCompleted,
	} {
		assert.False(t, s.IsFinal(), "%s should not be final", s)
	}
}

func TestPaymentStatus_IsCacheStable(t *testing.T) {
	assert.True(t, StatusConfirmed.IsCacheStable())
	assert.True(t, StatusRefunded.IsCacheStable())
	assert.True(t, StatusExpired.IsCacheStable())
	// In-flight statuses stay on the short TTL.
	assert.False(t, StatusNew.IsCacheStable())
	assert.False(t, StatusAuthorizing.IsCacheStable())
	assert.False(t, StatusAuthorized.IsCacheStable())
}

func TestPaymentStatus_ExpiryTarget(t *testing.T) {
	assert.Equal(t, StatusExpired, StatusNew.ExpiryTarget())
	assert.Equal(t, StatusExpired, StatusFormShowed.ExpiryTarget())
	assert.Equal(t, StatusDeadlineExpired, StatusAuthorizing.ExpiryTarget())
	assert.Equal(t, StatusDeadlineExpired, StatusAuthorized.ExpiryTarget())
	assert.Equal(t, PaymentStatus(""), StatusConfirmed.ExpiryTarget())
	assert.Equal(t, PaymentStatus(""), StatusCancelled.ExpiryTarget())

	// Every sweepable status has a target, and the target is a legal edge.
	for _, s := range SweepableStatuses() {
		target := s.ExpiryTarget()
		require.NotEmpty(t, target, "sweepable status %s has no expiry target", s)
		assert.True(t, CanTransition(s, target), "%s -> %s must be a legal edge", s, target)
	}
}

func TestPayment_ApplyStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	p := &Payment{Status: StatusAuthorizing}

	p.ApplyStatus(StatusAuthorized, now)
	assert.Equal(t, StatusAuthorized, p.Status)
	require.NotNil(t, p.AuthorizedAt)
	assert.Equal(t, now, *p.AuthorizedAt)
	assert.Nil(t, p.ConfirmedAt)

	later := now.Add(time.Minute)
	p.ApplyStatus(StatusConfirming, later)
	p.ApplyStatus(StatusConfirmed, later)
	require.NotNil(t, p.ConfirmedAt)
	assert.Equal(t, later, *p.ConfirmedAt)
	// The authorization stamp is not overwritten.
	assert.Equal(t, now, *p.AuthorizedAt)
}

func TestPayment_IsExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	p := &Payment{ExpiresAt: now.Add(time.Minute)}
	assert.False(t, p.IsExpired(now))
	assert.True(t, p.IsExpired(now.Add(time.Minute)))
	assert.True(t, p.IsExpired(now.Add(time.Hour)))

	// Zero deadline never expires.
	assert.False(t, (&Payment{}).IsExpired(now))
}

func TestNewPaymentID(t *testing.T) {
	id := NewPaymentID()
	assert.True(t, strings.HasPrefix(id, "pay_"))
	assert.Len(t, id, 4+32)
	assert.NotEqual(t, id, NewPaymentID())
}

func TestLuhn(t *testing.T) {
	assert.True(t, Luhn("4111111111111111"))
	assert.True(t, Luhn("5555555555554444"))
	assert.True(t, Luhn("2200000000000053"))
	assert.False(t, Luhn("4111111111111112"))
	assert.False(t, Luhn("4111x11111111111"))
}

func TestValidateCard(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateCard("4111111111111111", "12/30", "123", now))
	require.NoError(t, ValidateCard("4111 1111 1111 1111", "12/30", "1234", now))
	// A card is good through the last day of its expiry month.
	require.NoError(t, ValidateCard("4111111111111111", "06/25", "123", now))

	assert.ErrorIs(t, ValidateCard("4111111111111112", "12/30", "123", now), ErrCardNumber)
	assert.ErrorIs(t, ValidateCard("411111", "12/30", "123", now), ErrCardNumber)
	assert.ErrorIs(t, ValidateCard("4111111111111111", "05/25", "123", now), ErrCardExpiry)
	assert.ErrorIs(t, ValidateCard("4111111111111111", "13/30", "123", now), ErrCardExpiry)
	assert.ErrorIs(t, ValidateCard("4111111111111111", "1230", "123", now), ErrCardExpiry)
	assert.ErrorIs(t, ValidateCard("4111111111111111", "12/30", "12", now), ErrCardCVV)
	assert.ErrorIs(t, ValidateCard("4111111111111111", "12/30", "12a", now), ErrCardCVV)
}

func TestMaskPAN(t *testing.T) {
	assert.Equal(t, "411111******1111", MaskPAN("4111111111111111"))
	assert.Equal(t, "411111******1111", MaskPAN("4111 1111 1111 1111"))
	assert.Equal(t, "411111*********0366", MaskPAN("4111111111111110366"))
	// Too short to carry BIN + tail: fully masked.
	assert.Equal(t, "******", MaskPAN("411111"))
}

func TestIsValidSlug(t *testing.T) {
	assert.True(t, IsValidSlug("shop"))
	assert.True(t, IsValidSlug("my-shop_42"))
	assert.False(t, IsValidSlug("ab"))        // too short
	assert.False(t, IsValidSlug("has space")) //
	assert.False(t, IsValidSlug("admin"))     // reserved
	assert.False(t, IsValidSlug("metrics"))   // reserved
	assert.False(t, IsValidSlug(""))
}

func TestTeam_Checks(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	team := &Team{
		SupportedCurrencies: []string{"RUB", "USD"},
		Limits:              TeamLimits{MinAmount: 100, MaxAmount: 100000},
	}

	assert.True(t, team.SupportsCurrency("RUB"))
	assert.False(t, team.SupportsCurrency("EUR"))

	assert.True(t, team.CheckAmount(100))
	assert.True(t, team.CheckAmount(100000))
	assert.False(t, team.CheckAmount(99))
	assert.False(t, team.CheckAmount(100001))
	// Zero limits are "not set".
	assert.True(t, (&Team{}).CheckAmount(1))

	assert.False(t, team.IsLocked(now))
	until := now.Add(time.Minute)
	team.LockedUntil = &until
	assert.True(t, team.IsLocked(now))
	assert.False(t, team.IsLocked(until))
}

func TestCacheKeys(t *testing.T) {
	teamID := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	assert.Equal(t, "cfm:11111111-2222-3333-4444-555555555555:k1",
		ConfirmIdempotencyKey(teamID, "k1"))
	assert.Equal(t, "cxl:11111111-2222-3333-4444-555555555555:k1",
		CancelIdempotencyKey(teamID, "k1"))
	assert.Equal(t, "chktag:11111111-2222-3333-4444-555555555555:pay_a",
		PaymentTag(teamID, "pay_a"))
	assert.Equal(t, "chktag:11111111-2222-3333-4444-555555555555:order:o1",
		OrderTag(teamID, "o1"))

	// Payment and order tags never collide even for equal raw values.
	assert.NotEqual(t, PaymentTag(teamID, "x"), OrderTag(teamID, "x"))
}
