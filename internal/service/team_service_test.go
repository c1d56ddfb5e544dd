package service

import (
	"context"
	"testing"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/core/ports/mocks"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type teamTestDeps struct {
	svc      *TeamServiceImpl
	teamRepo *mocks.MockTeamRepository
	hashSvc  *mocks.MockHashService
	encSvc   *mocks.MockEncryptionService
	auditSvc *mocks.MockAuditService
	clock    *clock.Fake
	ctrl     *gomock.Controller
}

func setupTeamService(t *testing.T) *teamTestDeps {
	ctrl := gomock.NewController(t)
	d := &teamTestDeps{
		teamRepo: mocks.NewMockTeamRepository(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		encSvc:   mocks.NewMockEncryptionService(ctrl),
		auditSvc: mocks.NewMockAuditService(ctrl),
		clock:    clock.NewFake(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)),
		ctrl:     ctrl,
	}
	d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()
	d.svc = NewTeamService(
		d.teamRepo, d.hashSvc, d.encSvc, d.auditSvc, d.clock, zerolog.Nop(),
		TeamServiceConfig{DefaultMinAmount: 100, DefaultMaxAmount: 100_000_000},
	)
	return d
}

func TestTeamService_Register_Success(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.teamRepo.EXPECT().GetBySlug(ctx, "new-shop").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("secret-password").Return("$argon2id$...", nil)
	d.encSvc.EXPECT().Encrypt("secret-password").Return("enc_pw", nil)

	var created *domain.Team
	d.teamRepo.EXPECT().Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, team *domain.Team) error {
			created = team
			return nil
		})

	result, err := d.svc.Register(ctx, ports.RegisterTeamRequest{
		TeamSlug: "new-shop",
		Password: "secret-password",
		Name:     "New Shop",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-shop", result.TeamSlug)

	require.NotNil(t, created)
	assert.Equal(t, "$argon2id$...", created.PasswordHash)
	assert.Equal(t, "enc_pw", created.PasswordEnc)
	assert.Equal(t, []string{"RUB"}, created.SupportedCurrencies)
	assert.True(t, created.IsActive)
	assert.True(t, created.Features.Refunds)
	assert.Equal(t, int64(100), created.Limits.MinAmount)
}

func TestTeamService_Register_SlugTaken(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.teamRepo.EXPECT().GetBySlug(ctx, "shop").Return(testTeam(), nil)

	_, err := d.svc.Register(ctx, ports.RegisterTeamRequest{
		TeamSlug: "shop", Password: "secret-password", Name: "Shop",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.FamilyConfirm+409, appCode(t, err))
}

func TestTeamService_Register_InvalidSlug(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	for _, slug := range []string{"ab", "has space", "admin", "api", ""} {
		_, err := d.svc.Register(context.Background(), ports.RegisterTeamRequest{
			TeamSlug: slug, Password: "secret-password", Name: "Shop",
		})
		require.Error(t, err, "slug %q should be rejected", slug)
		assert.Equal(t, apperror.FamilyConfirm+100, appCode(t, err))
	}
}

func TestTeamService_Register_ShortPassword(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Register(context.Background(), ports.RegisterTeamRequest{
		TeamSlug: "new-shop", Password: "short", Name: "Shop",
	})
	require.Error(t, err)
	assert.Equal(t, apperror.FamilyConfirm+100, appCode(t, err))
}

func TestTeamService_Register_UnsupportedCurrency(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.teamRepo.EXPECT().GetBySlug(ctx, "new-shop").Return(nil, nil)

	_, err := d.svc.Register(ctx, ports.RegisterTeamRequest{
		TeamSlug: "new-shop", Password: "secret-password", Name: "Shop",
		SupportedCurrencies: []string{"RUB", "JPY"},
	})
	require.Error(t, err)
	assert.Equal(t, apperror.FamilyConfirm+100, appCode(t, err))
}

func TestTeamService_AdminUpdate(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	team := testTeam()
	name := "Renamed"
	inactive := false

	d.teamRepo.EXPECT().GetBySlug(ctx, "shop").Return(team, nil)
	d.teamRepo.EXPECT().Update(ctx, team).Return(nil)

	updated, err := d.svc.AdminUpdate(ctx, "shop", ports.TeamUpdate{
		Name:     &name,
		IsActive: &inactive,
		Limits:   &domain.TeamLimits{MinAmount: 500, MaxAmount: 1_000_000},
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, int64(500), updated.Limits.MinAmount)
	// Untouched fields stay.
	assert.Equal(t, []string{"RUB", "USD"}, updated.SupportedCurrencies)
}

func TestTeamService_AdminUpdate_InvalidLimits(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	cases := []struct {
		name   string
		limits domain.TeamLimits
	}{
		{"min above max", domain.TeamLimits{MinAmount: 5000, MaxAmount: 1000}},
		{"daily above monthly", domain.TeamLimits{DailyAmount: 2_000_000, MonthlyAmount: 1_000_000}},
		{"negative", domain.TeamLimits{MinAmount: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d.teamRepo.EXPECT().GetBySlug(ctx, "shop").Return(testTeam(), nil)

			// No Update expectation: the write never happens.
			_, err := d.svc.AdminUpdate(ctx, "shop", ports.TeamUpdate{Limits: &tc.limits})
			require.Error(t, err)
			assert.Equal(t, apperror.FamilyConfirm+100, appCode(t, err))
		})
	}
}

func TestTeamService_AdminUpdate_NotFound(t *testing.T) {
	d := setupTeamService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.teamRepo.EXPECT().GetBySlug(ctx, "ghost").Return(nil, nil)

	_, err := d.svc.AdminUpdate(ctx, "ghost", ports.TeamUpdate{})
	require.Error(t, err)
	assert.Equal(t, apperror.FamilyConfirm+404, appCode(t, err))
}
