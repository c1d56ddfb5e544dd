package service

import (
	"context"
	"fmt"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TeamServiceConfig holds registration defaults.
type TeamServiceConfig struct {
	DefaultMinAmount int64
	DefaultMaxAmount int64
}

// TeamServiceImpl implements ports.TeamService.
type TeamServiceImpl struct {
	teamRepo ports.TeamRepository
	hashSvc  ports.HashService
	encSvc   ports.EncryptionService
	auditSvc ports.AuditService
	clock    clock.Clock
	log      zerolog.Logger
	cfg      TeamServiceConfig
}

// NewTeamService creates a new TeamServiceImpl.
func NewTeamService(
	teamRepo ports.TeamRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	auditSvc ports.AuditService,
	clk clock.Clock,
	log zerolog.Logger,
	cfg TeamServiceConfig,
) *TeamServiceImpl {
	return &TeamServiceImpl{
		teamRepo: teamRepo,
		hashSvc:  hashSvc,
		encSvc:   encSvc,
		auditSvc: auditSvc,
		clock:    clk,
		log:      log,
		cfg:      cfg,
	}
}

// Register creates a merchant team. The shared secret is stored twice: hashed
// for the basic-auth surface and encrypted so the gateway can recompute
// request tokens.
func (s *TeamServiceImpl) Register(ctx context.Context, req ports.RegisterTeamRequest) (*ports.RegisterTeamResult, error) {
	if !domain.IsValidSlug(req.TeamSlug) {
		return nil, apperror.Validation(apperror.FamilyConfirm, "invalid team slug")
	}
	if len(req.Password) < 8 {
		return nil, apperror.Validation(apperror.FamilyConfirm, "password must be at least 8 characters")
	}

	existing, err := s.teamRepo.GetBySlug(ctx, req.TeamSlug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check slug: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrConflict(apperror.FamilyConfirm, "team slug already registered")
	}

	currencies := req.SupportedCurrencies
	if len(currencies) == 0 {
		currencies = []string{"RUB"}
	}
	for _, c := range currencies {
		if !supportedCurrency(c) {
			return nil, apperror.Validation(apperror.FamilyConfirm, "unsupported currency: "+c)
		}
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}
	passwordEnc, err := s.encSvc.Encrypt(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt password: %w", err))
	}

	now := s.clock.Now()
	team := &domain.Team{
		ID:                  uuid.New(),
		Slug:                req.TeamSlug,
		PasswordHash:        passwordHash,
		PasswordEnc:         passwordEnc,
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		SuccessURL:          req.SuccessURL,
		FailURL:             req.FailURL,
		NotificationURL:     req.NotificationURL,
		SupportedCurrencies: currencies,
		Limits: domain.TeamLimits{
			MinAmount: s.cfg.DefaultMinAmount,
			MaxAmount: s.cfg.DefaultMaxAmount,
		},
		Features: domain.TeamFeatures{
			Refunds:   true,
			Reversals: true,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create team: %w", err))
	}

	slug := team.Slug
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:        uuid.New(),
		Actor:     slug,
		Action:    domain.AuditActionRegister,
		TeamSlug:  &slug,
		Outcome:   domain.AuditOutcomeSuccess,
		IPAddress: req.ClientIP,
		CreatedAt: now,
	})

	s.log.Info().Str("team", team.Slug).Msg("team registered")

	return &ports.RegisterTeamResult{
		TeamSlug:  team.Slug,
		CreatedAt: team.CreatedAt,
	}, nil
}

// Profile returns the team as exposed on the self-service surface.
func (s *TeamServiceImpl) Profile(ctx context.Context, team *domain.Team) *domain.Team {
	return team
}

// AdminUpdate applies operator edits to a team.
func (s *TeamServiceImpl) AdminUpdate(ctx context.Context, slug string, upd ports.TeamUpdate) (*domain.Team, error) {
	team, err := s.teamRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load team: %w", err))
	}
	if team == nil {
		return nil, apperror.ErrNotFound(apperror.FamilyConfirm, "Team")
	}

	if upd.Name != nil {
		team.Name = *upd.Name
	}
	if upd.IsActive != nil {
		team.IsActive = *upd.IsActive
	}
	if len(upd.SupportedCurrencies) > 0 {
		for _, c := range upd.SupportedCurrencies {
			if !supportedCurrency(c) {
				return nil, apperror.Validation(apperror.FamilyConfirm, "unsupported currency: "+c)
			}
		}
		team.SupportedCurrencies = upd.SupportedCurrencies
	}
	if upd.Limits != nil {
		if err := validateLimits(upd.Limits); err != nil {
			return nil, err
		}
		team.Limits = *upd.Limits
	}
	if upd.Features != nil {
		team.Features = *upd.Features
	}
	if upd.NotificationURL != nil {
		team.NotificationURL = upd.NotificationURL
	}
	team.UpdatedAt = s.clock.Now()

	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update team: %w", err))
	}

	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:        uuid.New(),
		Actor:     "admin",
		Action:    domain.AuditActionTeamUpdate,
		TeamSlug:  &team.Slug,
		Outcome:   domain.AuditOutcomeSuccess,
		CreatedAt: team.UpdatedAt,
	})

	return team, nil
}

// validateLimits enforces the ordering invariants on team limits: zero means
// "no limit" and is always allowed.
func validateLimits(l *domain.TeamLimits) error {
	if l.MinAmount < 0 || l.MaxAmount < 0 || l.DailyAmount < 0 ||
		l.MonthlyAmount < 0 || l.DailyTxCount < 0 {
		return apperror.Validation(apperror.FamilyConfirm, "limits must not be negative")
	}
	if l.MaxAmount > 0 && l.MinAmount > l.MaxAmount {
		return apperror.Validation(apperror.FamilyConfirm, "min amount exceeds max amount")
	}
	if l.DailyAmount > 0 && l.MonthlyAmount > 0 && l.DailyAmount > l.MonthlyAmount {
		return apperror.Validation(apperror.FamilyConfirm, "daily amount exceeds monthly amount")
	}
	return nil
}

func supportedCurrency(c string) bool {
	for _, s := range domain.SupportedCurrencies {
		if s == c {
			return true
		}
	}
	return false
}
