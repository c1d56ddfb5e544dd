package service

import (
	"context"
	"testing"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports/mocks"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/clock"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sweeperTestDeps struct {
	sweeper     *ExpirySweeper
	paymentRepo *mocks.MockPaymentRepository
	cache       *mocks.MockStatusCache
	auditSvc    *mocks.MockAuditService
	recorder    *metrics.Recorder
	clock       *clock.Fake
	ctrl        *gomock.Controller
}

func setupSweeper(t *testing.T) *sweeperTestDeps {
	ctrl := gomock.NewController(t)
	d := &sweeperTestDeps{
		paymentRepo: mocks.NewMockPaymentRepository(ctrl),
		cache:       mocks.NewMockStatusCache(ctrl),
		auditSvc:    mocks.NewMockAuditService(ctrl),
		recorder:    metrics.NewRecorder(),
		clock:       clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
		ctrl:        ctrl,
	}
	d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()
	d.sweeper = NewExpirySweeper(
		d.paymentRepo, d.cache, d.auditSvc, d.recorder, d.clock, zerolog.Nop(),
		time.Minute, 100,
	)
	return d
}

func TestExpirySweeper_SweepOnce(t *testing.T) {
	d := setupSweeper(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	team := testTeam()
	unpaid := testPayment(team, domain.StatusNew)
	authorized := testPayment(team, domain.StatusAuthorized)

	d.paymentRepo.EXPECT().ListExpired(ctx, d.clock.Now(), 100).
		Return([]domain.Payment{*unpaid, *authorized}, nil)
	d.paymentRepo.EXPECT().UpdateStatus(ctx, gomock.Any()).Return(nil).Times(2)
	d.cache.EXPECT().InvalidateTags(ctx, gomock.Any(), gomock.Any()).Return(nil).Times(2)

	moved, err := d.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	// Unpaid payments expire, authorized ones hit the capture deadline.
	assert.Equal(t, 1.0, d.recorder.Counter(metrics.ExpirySweepTransitionsTotal,
		map[string]string{"status": string(domain.StatusExpired)}))
	assert.Equal(t, 1.0, d.recorder.Counter(metrics.ExpirySweepTransitionsTotal,
		map[string]string{"status": string(domain.StatusDeadlineExpired)}))
	assert.Equal(t, -2.0, d.recorder.Gauge(metrics.PaymentsInFlight, nil))
}

func TestExpirySweeper_SkipsVersionConflicts(t *testing.T) {
	d := setupSweeper(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	team := testTeam()
	contested := testPayment(team, domain.StatusNew)
	clean := testPayment(team, domain.StatusFormShowed)

	d.paymentRepo.EXPECT().ListExpired(ctx, d.clock.Now(), 100).
		Return([]domain.Payment{*contested, *clean}, nil)
	gomock.InOrder(
		d.paymentRepo.EXPECT().UpdateStatus(ctx, gomock.Any()).Return(domain.ErrVersionConflict),
		d.paymentRepo.EXPECT().UpdateStatus(ctx, gomock.Any()).Return(nil),
	)
	d.cache.EXPECT().InvalidateTags(ctx, gomock.Any(), gomock.Any()).Return(nil)

	moved, err := d.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)
}

func TestExpirySweeper_EmptyBatch(t *testing.T) {
	d := setupSweeper(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.paymentRepo.EXPECT().ListExpired(ctx, d.clock.Now(), 100).Return(nil, nil)

	moved, err := d.sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, moved)
}
