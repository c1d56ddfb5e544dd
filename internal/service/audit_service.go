package service

import (
	"context"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates a new audit service.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Log records an audit entry asynchronously (fire-and-forget).
func (s *auditService) Log(ctx context.Context, entry *domain.AuditLog) {
	go func() {
		ev := s.log.Info().
			Str("actor", entry.Actor).
			Str("action", string(entry.Action)).
			Str("outcome", entry.Outcome)
		if entry.PaymentID != nil {
			ev = ev.Str("payment_id", *entry.PaymentID)
		}
		if entry.IPAddress != "" {
			ev = ev.Str("ip", entry.IPAddress)
		}
		ev.Msg("audit")

		if s.repo != nil {
			if err := s.repo.Create(context.Background(), entry); err != nil {
				s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
			}
		}
	}()
}
