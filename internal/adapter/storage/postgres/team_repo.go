package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hosted-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TeamRepo implements ports.TeamRepository.
type TeamRepo struct {
	pool Pool
}

// NewTeamRepo creates a new TeamRepo.
func NewTeamRepo(pool Pool) *TeamRepo {
	return &TeamRepo{pool: pool}
}

const teamColumns = `id, slug, password_hash, password_enc, name, email, phone,
	success_url, fail_url, notification_url, cancel_url,
	supported_currencies, limits, features, fee_percent, fee_fixed,
	failed_auth_attempts, locked_until, is_active, created_at, updated_at`

// Create inserts a new team.
func (r *TeamRepo) Create(ctx context.Context, team *domain.Team) error {
	limits, err := json.Marshal(team.Limits)
	if err != nil {
		return fmt.Errorf("marshal team limits: %w", err)
	}
	features, err := json.Marshal(team.Features)
	if err != nil {
		return fmt.Errorf("marshal team features: %w", err)
	}

	query := `INSERT INTO teams (` + teamColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	_, err = r.pool.Exec(ctx, query,
		team.ID, team.Slug, team.PasswordHash, team.PasswordEnc,
		team.Name, team.Email, team.Phone,
		team.SuccessURL, team.FailURL, team.NotificationURL, team.CancelURL,
		team.SupportedCurrencies, limits, features,
		team.FeePercent, team.FeeFixed,
		team.FailedAuthAttempts, team.LockedUntil, team.IsActive,
		team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert team: %w", err)
	}
	return nil
}

// GetBySlug fetches a team by its slug.
func (r *TeamRepo) GetBySlug(ctx context.Context, slug string) (*domain.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams WHERE slug = $1`
	return r.scanTeam(r.pool.QueryRow(ctx, query, slug))
}

// Update persists team profile changes.
func (r *TeamRepo) Update(ctx context.Context, team *domain.Team) error {
	limits, err := json.Marshal(team.Limits)
	if err != nil {
		return fmt.Errorf("marshal team limits: %w", err)
	}
	features, err := json.Marshal(team.Features)
	if err != nil {
		return fmt.Errorf("marshal team features: %w", err)
	}

	query := `UPDATE teams
		SET name=$1, email=$2, phone=$3, success_url=$4, fail_url=$5, notification_url=$6, cancel_url=$7,
			supported_currencies=$8, limits=$9, features=$10, fee_percent=$11, fee_fixed=$12,
			is_active=$13, updated_at=$14
		WHERE id=$15`
	_, err = r.pool.Exec(ctx, query,
		team.Name, team.Email, team.Phone,
		team.SuccessURL, team.FailURL, team.NotificationURL, team.CancelURL,
		team.SupportedCurrencies, limits, features,
		team.FeePercent, team.FeeFixed,
		team.IsActive, team.UpdatedAt, team.ID,
	)
	if err != nil {
		return fmt.Errorf("update team: %w", err)
	}
	return nil
}

// RecordAuthFailure bumps the failed-attempt counter and optionally locks
// the team.
func (r *TeamRepo) RecordAuthFailure(ctx context.Context, id uuid.UUID, lockedUntil *time.Time) error {
	query := `UPDATE teams
		SET failed_auth_attempts = failed_auth_attempts + 1,
			locked_until = COALESCE($1, locked_until),
			updated_at = NOW()
		WHERE id = $2`
	_, err := r.pool.Exec(ctx, query, lockedUntil, id)
	if err != nil {
		return fmt.Errorf("record auth failure: %w", err)
	}
	return nil
}

// ResetAuthFailures clears the lockout state after a successful auth.
func (r *TeamRepo) ResetAuthFailures(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE teams
		SET failed_auth_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reset auth failures: %w", err)
	}
	return nil
}

func (r *TeamRepo) scanTeam(row pgx.Row) (*domain.Team, error) {
	t := &domain.Team{}
	var limits, features []byte
	err := row.Scan(
		&t.ID, &t.Slug, &t.PasswordHash, &t.PasswordEnc,
		&t.Name, &t.Email, &t.Phone,
		&t.SuccessURL, &t.FailURL, &t.NotificationURL, &t.CancelURL,
		&t.SupportedCurrencies, &limits, &features,
		&t.FeePercent, &t.FeeFixed,
		&t.FailedAuthAttempts, &t.LockedUntil, &t.IsActive,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	if len(limits) > 0 {
		if err := json.Unmarshal(limits, &t.Limits); err != nil {
			return nil, fmt.Errorf("unmarshal team limits: %w", err)
		}
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &t.Features); err != nil {
			return nil, fmt.Errorf("unmarshal team features: %w", err)
		}
	}
	return t, nil
}
