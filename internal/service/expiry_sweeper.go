package service

import (
	"context"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ExpirySweeper moves overdue payments to their expiry status in the
// background. Lazy expiry on the read paths handles the payments merchants
// actually look at; the sweeper catches the rest.
type ExpirySweeper struct {
	paymentRepo ports.PaymentRepository
	cache       ports.StatusCache
	auditSvc    ports.AuditService
	metrics     ports.Metrics
	clock       clock.Clock
	log         zerolog.Logger

	interval time.Duration
	batch    int
}

// NewExpirySweeper creates a sweeper; Run starts it.
func NewExpirySweeper(
	paymentRepo ports.PaymentRepository,
	cache ports.StatusCache,
	auditSvc ports.AuditService,
	m ports.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
	interval time.Duration,
	batch int,
) *ExpirySweeper {
	return &ExpirySweeper{
		paymentRepo: paymentRepo,
		cache:       cache,
		auditSvc:    auditSvc,
		metrics:     m,
		clock:       clk,
		log:         log,
		interval:    interval,
		batch:       batch,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
			} else if n > 0 {
				s.log.Info().Int("expired", n).Msg("expiry sweep")
			}
		}
	}
}

// SweepOnce expires one batch of overdue payments and returns how many moved.
// Version conflicts are skipped; the racing writer owns the payment now.
func (s *ExpirySweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	overdue, err := s.paymentRepo.ListExpired(ctx, now, s.batch)
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range overdue {
		p := &overdue[i]
		target := p.Status.ExpiryTarget()
		if target == "" {
			continue
		}
		p.ApplyStatus(target, now)
		if err := s.paymentRepo.UpdateStatus(ctx, p); err != nil {
			if err != domain.ErrVersionConflict {
				s.log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("expiry write failed")
			}
			continue
		}
		moved++

		s.metrics.IncCounter(metrics.ExpirySweepTransitionsTotal, map[string]string{"status": string(target)})
		s.metrics.AddGauge(metrics.PaymentsInFlight, -1, nil)

		if err := s.cache.InvalidateTags(ctx,
			domain.PaymentTag(p.TeamID, p.PaymentID),
			domain.OrderTag(p.TeamID, p.OrderID)); err != nil {
			s.log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("status cache invalidation failed")
		}

		s.auditSvc.Log(ctx, &domain.AuditLog{
			ID:        uuid.New(),
			Actor:     "system",
			Action:    domain.AuditActionExpire,
			PaymentID: &p.PaymentID,
			Outcome:   domain.AuditOutcomeSuccess,
			Details:   string(target),
			CreatedAt: now,
		})
	}
	return moved, nil
}
