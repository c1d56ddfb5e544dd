package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/google/uuid"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	teamRepo    ports.TeamRepository
	hashSvc     ports.HashService
	encSvc      ports.EncryptionService
	tokenSvc    ports.TokenService
	replayStore ports.ReplayStore
	metrics     ports.Metrics
	clock       clock.Clock

	maxFailedAttempts int
	lockoutDuration   time.Duration
	replayWindow      time.Duration
	adminToken        string
}

// AuthServiceConfig bundles the tunables of the authenticator.
type AuthServiceConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	ReplayWindow      time.Duration
	AdminToken        string
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	teamRepo ports.TeamRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	tokenSvc ports.TokenService,
	replayStore ports.ReplayStore,
	m ports.Metrics,
	clk clock.Clock,
	cfg AuthServiceConfig,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		teamRepo:          teamRepo,
		hashSvc:           hashSvc,
		encSvc:            encSvc,
		tokenSvc:          tokenSvc,
		replayStore:       replayStore,
		metrics:           m,
		clock:             clk,
		maxFailedAttempts: cfg.MaxFailedAttempts,
		lockoutDuration:   cfg.LockoutDuration,
		replayWindow:      cfg.ReplayWindow,
		adminToken:        cfg.AdminToken,
	}
}

// familyFor maps an auth scope to its error code family.
func familyFor(scope ports.AuthScope) int {
	switch scope {
	case ports.ScopeConfirm:
		return apperror.FamilyConfirm
	case ports.ScopeCancel:
		return apperror.FamilyCancel
	default:
		return apperror.FamilyInit
	}
}

// AuthenticateMerchant verifies the request token over the operation's signed
// parameter set. Unknown teams and bad tokens produce the same error so slug
// probing learns nothing.
func (s *AuthServiceImpl) AuthenticateMerchant(ctx context.Context, scope ports.AuthScope, teamSlug, token string, params map[string]string) (*domain.Team, error) {
	family := familyFor(scope)

	team, err := s.teamRepo.GetBySlug(ctx, teamSlug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "unknown_team"})
		return nil, apperror.ErrAuth(family)
	}

	now := s.clock.Now()
	if team.IsLocked(now) {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "locked"})
		return nil, apperror.ErrTeamLocked(family)
	}
	if !team.IsActive {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "inactive"})
		return nil, apperror.ErrTeamInactive(family)
	}

	password, err := s.encSvc.Decrypt(team.PasswordEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt team secret: %w", err))
	}

	if !s.tokenSvc.Verify(params, password, token) {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "bad_token"})
		if err := s.recordFailure(ctx, team, now); err != nil {
			return nil, apperror.InternalError(err)
		}
		return nil, apperror.ErrAuth(family)
	}

	if team.FailedAuthAttempts > 0 {
		if err := s.teamRepo.ResetAuthFailures(ctx, team.ID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reset auth failures: %w", err))
		}
	}

	return team, nil
}

// CheckReplay rejects a signed payload already marked inside the window for
// the same team and operation, and otherwise returns the server-assigned
// request id. The marker itself is written by MarkReplay once the guarded
// operation succeeded, so a failed call stays retryable.
func (s *AuthServiceImpl) CheckReplay(ctx context.Context, scope ports.AuthScope, team *domain.Team, token string) (string, error) {
	seen, err := s.replayStore.Seen(ctx, string(scope), replayMarker(team, token))
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("replay check: %w", err))
	}
	if seen {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "replay"})
		return "", apperror.ErrReplay(familyFor(scope))
	}
	return uuid.New().String(), nil
}

// MarkReplay records the signed payload after a successful mutation, arming
// the replay window against identical retries.
func (s *AuthServiceImpl) MarkReplay(ctx context.Context, scope ports.AuthScope, team *domain.Team, token string) error {
	if err := s.replayStore.Mark(ctx, string(scope), replayMarker(team, token), s.replayWindow); err != nil {
		return apperror.InternalError(fmt.Errorf("replay mark: %w", err))
	}
	return nil
}

func replayMarker(team *domain.Team, token string) string {
	sum := sha256.Sum256([]byte(token))
	return team.ID.String() + ":" + hex.EncodeToString(sum[:])
}

// AuthenticateBasic validates slug + password for the self-service surface.
func (s *AuthServiceImpl) AuthenticateBasic(ctx context.Context, slug, password string) (*domain.Team, error) {
	team, err := s.teamRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find team: %w", err))
	}
	if team == nil {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "unknown_team"})
		return nil, apperror.ErrAuth(apperror.FamilyInit)
	}

	now := s.clock.Now()
	if team.IsLocked(now) {
		return nil, apperror.ErrTeamLocked(apperror.FamilyInit)
	}

	valid, err := s.hashSvc.Verify(password, team.PasswordHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "bad_password"})
		if err := s.recordFailure(ctx, team, now); err != nil {
			return nil, apperror.InternalError(err)
		}
		return nil, apperror.ErrAuth(apperror.FamilyInit)
	}

	if team.FailedAuthAttempts > 0 {
		if err := s.teamRepo.ResetAuthFailures(ctx, team.ID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("reset auth failures: %w", err))
		}
	}

	return team, nil
}

// AuthenticateAdmin validates the operator bearer token. An empty configured
// token disables the admin surface entirely.
func (s *AuthServiceImpl) AuthenticateAdmin(token string) error {
	if s.adminToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		s.metrics.IncCounter(metrics.AuthFailuresTotal, map[string]string{"reason": "bad_admin_token"})
		return apperror.ErrAuth(apperror.FamilyInit)
	}
	return nil
}

func (s *AuthServiceImpl) recordFailure(ctx context.Context, team *domain.Team, now time.Time) error {
	var lockedUntil *time.Time
	if team.FailedAuthAttempts+1 >= s.maxFailedAttempts {
		until := now.Add(s.lockoutDuration)
		lockedUntil = &until
	}
	if err := s.teamRepo.RecordAuthFailure(ctx, team.ID, lockedUntil); err != nil {
		return fmt.Errorf("record auth failure: %w", err)
	}
	return nil
}
