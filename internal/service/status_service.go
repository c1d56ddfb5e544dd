package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/rs/zerolog"
)

// StatusServiceConfig holds the status-cache TTLs.
type StatusServiceConfig struct {
	NonTerminalTTL time.Duration
	TerminalTTL    time.Duration
}

// StatusServiceImpl implements ports.StatusService. Responses are cached with
// a TTL picked from the payment status: settled payments cache long, moving
// ones short. Failures are never cached.
type StatusServiceImpl struct {
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
	authSvc     ports.AuthService
	cache       ports.StatusCache
	metrics     ports.Metrics
	clock       clock.Clock
	log         zerolog.Logger
	cfg         StatusServiceConfig
}

// NewStatusService creates a new StatusServiceImpl.
func NewStatusService(
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
	authSvc ports.AuthService,
	cache ports.StatusCache,
	m ports.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
	cfg StatusServiceConfig,
) *StatusServiceImpl {
	return &StatusServiceImpl{
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
		authSvc:     authSvc,
		cache:       cache,
		metrics:     m,
		clock:       clk,
		log:         log,
		cfg:         cfg,
	}
}

// Check answers a status query by payment id or order id. PaymentID wins when
// both are present.
func (s *StatusServiceImpl) Check(ctx context.Context, req ports.CheckRequest) (*ports.CheckResult, error) {
	if req.PaymentID == "" && req.OrderID == "" {
		return nil, apperror.Validation(apperror.FamilyInit, "either PaymentId or OrderId is required")
	}

	params := map[string]string{"TeamSlug": req.TeamSlug}
	ref := req.PaymentID
	if req.PaymentID != "" {
		params["PaymentId"] = req.PaymentID
	} else {
		params["OrderId"] = req.OrderID
		ref = "order:" + req.OrderID
	}
	team, err := s.authSvc.AuthenticateMerchant(ctx, ports.ScopeCheck, req.TeamSlug, req.Token, params)
	if err != nil {
		return nil, err
	}

	key := domain.CheckCacheKey(team.ID, ref, includeFlags(req), req.Language)
	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("status cache lookup failed")
	}
	if cached != nil {
		var res ports.CheckResult
		if err := json.Unmarshal(cached, &res); err == nil {
			s.metrics.IncCounter(metrics.PaymentCheckTotal, map[string]string{"source": "cache"})
			return &res, nil
		}
		s.log.Warn().Str("key", key).Msg("dropping unreadable status cache entry")
	}

	var payments []domain.Payment
	if req.PaymentID != "" {
		p, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
		}
		if p == nil {
			return nil, apperror.ErrNotFound(apperror.FamilyInit, "Payment")
		}
		payments = []domain.Payment{*p}
	} else {
		payments, err = s.paymentRepo.ListByOrderID(ctx, team.ID, req.OrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("list order payments: %w", err))
		}
		if len(payments) == 0 {
			return nil, apperror.ErrNotFound(apperror.FamilyInit, "Order")
		}
	}

	now := s.clock.Now()
	res := &ports.CheckResult{Payments: make([]ports.PaymentView, 0, len(payments))}
	allStable := true
	tags := make([]string, 0, len(payments)+1)
	if req.OrderID != "" {
		tags = append(tags, domain.OrderTag(team.ID, req.OrderID))
	}

	for i := range payments {
		p := &payments[i]
		s.applyLazyExpiry(ctx, p, now)

		view, err := s.buildView(ctx, p, req)
		if err != nil {
			return nil, err
		}
		res.Payments = append(res.Payments, view)
		tags = append(tags, domain.PaymentTag(team.ID, p.PaymentID))
		if !p.Status.IsCacheStable() {
			allStable = false
		}
	}

	ttl := s.cfg.NonTerminalTTL
	if allStable {
		ttl = s.cfg.TerminalTTL
	}
	if body, err := json.Marshal(res); err == nil {
		if err := s.cache.SetTagged(ctx, key, body, ttl, tags); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("status cache write failed")
		}
	}

	s.metrics.IncCounter(metrics.PaymentCheckTotal, map[string]string{"source": "db"})
	return res, nil
}

// applyLazyExpiry moves an overdue payment to its expiry status so the query
// never reports a form URL that can no longer be paid. A racing writer wins
// silently; the sweeper covers whatever the query misses.
func (s *StatusServiceImpl) applyLazyExpiry(ctx context.Context, p *domain.Payment, now time.Time) {
	target := p.Status.ExpiryTarget()
	if target == "" || !p.IsExpired(now) {
		return
	}
	p.ApplyStatus(target, now)
	if err := s.paymentRepo.UpdateStatus(ctx, p); err != nil && err != domain.ErrVersionConflict {
		s.log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("lazy expiry write failed")
	}
}

func (s *StatusServiceImpl) buildView(ctx context.Context, p *domain.Payment, req ports.CheckRequest) (ports.PaymentView, error) {
	view := ports.PaymentView{
		PaymentID:   p.PaymentID,
		OrderID:     p.OrderID,
		Status:      p.Status,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		ExpiresAt:   p.ExpiresAt,
	}
	if req.IncludeCard {
		view.CardMask = p.CardMask
	}
	if req.IncludeCustomer {
		view.Email = p.Email
	}
	if req.IncludeReceipt {
		view.Receipt = p.Receipt
	}
	if req.IncludeTransactions {
		txs, err := s.txRepo.ListByPaymentID(ctx, p.PaymentID)
		if err != nil {
			return view, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
		}
		view.Transactions = make([]ports.TransactionView, 0, len(txs))
		for _, tx := range txs {
			view.Transactions = append(view.Transactions, ports.TransactionView{
				Type:            tx.Type,
				Status:          tx.Status,
				AuthCode:        tx.AuthCode,
				RRN:             tx.RRN,
				ResponseCode:    tx.ResponseCode,
				ResponseMessage: tx.ResponseMessage,
				Amount:          tx.Amount,
				CreatedAt:       tx.CreatedAt,
			})
		}
	}
	return view, nil
}

// includeFlags folds the include switches into the cache key so differently
// shaped responses never collide.
func includeFlags(req ports.CheckRequest) string {
	flags := make([]byte, 4)
	for i, b := range []bool{req.IncludeCard, req.IncludeTransactions, req.IncludeCustomer, req.IncludeReceipt} {
		if b {
			flags[i] = '1'
		} else {
			flags[i] = '0'
		}
	}
	return string(flags)
}
