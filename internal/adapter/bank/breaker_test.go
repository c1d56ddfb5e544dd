package bank

import (
	"context"
	"testing"
	"time"

	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/logger"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, inner ports.BankAdapter, rec *metrics.Recorder) *Breaker {
	t.Helper()
	return NewBreaker(inner, rec, logger.NewWithWriter("error", nil), BreakerConfig{
		ConsecutiveFailures: 3,
		Timeout:             30 * time.Second,
		CallTimeout:         time.Second,
	})
}

func TestBreaker_RecordsApprovedAndDeclined(t *testing.T) {
	rec := metrics.NewRecorder()
	b := newTestBreaker(t, NewStubBank(), rec)
	ctx := context.Background()

	res, err := b.Authorize(ctx, authReq("4111111111111111"))
	require.NoError(t, err)
	assert.True(t, res.Approved)

	res, err = b.Authorize(ctx, authReq("4000000000000002"))
	require.NoError(t, err)
	assert.False(t, res.Approved)

	assert.Equal(t, 1.0, rec.Counter(metrics.BankRequestsTotal, map[string]string{"op": "authorize", "result": "approved"}))
	assert.Equal(t, 1.0, rec.Counter(metrics.BankRequestsTotal, map[string]string{"op": "authorize", "result": "declined"}))
	assert.Len(t, rec.Observations(metrics.BankRequestDurationSeconds, map[string]string{"op": "authorize"}), 2)
}

func TestBreaker_DeclinesDoNotTrip(t *testing.T) {
	rec := metrics.NewRecorder()
	b := newTestBreaker(t, NewStubBank(), rec)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		res, err := b.Authorize(ctx, authReq("4000000000000002"))
		require.NoError(t, err)
		assert.False(t, res.Approved)
	}

	// Breaker still closed: an approved card goes straight through.
	res, err := b.Authorize(ctx, authReq("4111111111111111"))
	require.NoError(t, err)
	assert.True(t, res.Approved)
}

func TestBreaker_TripsAfterConsecutiveErrors(t *testing.T) {
	rec := metrics.NewRecorder()
	b := newTestBreaker(t, NewStubBank(), rec)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Authorize(ctx, authReq("4000000000000119"))
		require.Error(t, err)
	}

	// Open breaker short-circuits even good cards.
	_, err := b.Authorize(ctx, authReq("4111111111111111"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	assert.Equal(t, 4.0, rec.Counter(metrics.BankRequestsTotal, map[string]string{"op": "authorize", "result": "error"}))
}
