package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// statusWriteAttempts bounds the reload-and-retry loop for status writes that
// must land after a bank call already succeeded.
const statusWriteAttempts = 3

// PaymentServiceConfig bundles the engine tunables.
type PaymentServiceConfig struct {
	DefaultExpiry  time.Duration
	MinExpiry      time.Duration
	MaxExpiry      time.Duration
	MinAmount      int64
	MaxAmount      int64
	FormBaseURL    string
	IdempotencyTTL time.Duration
}

// PaymentServiceImpl implements ports.PaymentService: init, confirm and the
// cancel/reverse/refund path.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
	authSvc     ports.AuthService
	bank        ports.BankAdapter
	cache       ports.StatusCache
	auditSvc    ports.AuditService
	metrics     ports.Metrics
	clock       clock.Clock
	log         zerolog.Logger
	cfg         PaymentServiceConfig
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
	authSvc ports.AuthService,
	bank ports.BankAdapter,
	cache ports.StatusCache,
	auditSvc ports.AuditService,
	m ports.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
	cfg PaymentServiceConfig,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
		authSvc:     authSvc,
		bank:        bank,
		cache:       cache,
		auditSvc:    auditSvc,
		metrics:     m,
		clock:       clk,
		log:         log,
		cfg:         cfg,
	}
}

// Init registers a new payment and returns the hosted form URL.
func (s *PaymentServiceImpl) Init(ctx context.Context, req ports.InitRequest) (*ports.InitResult, error) {
	params := map[string]string{
		"Amount":   strconv.FormatInt(req.Amount, 10),
		"Currency": req.Currency,
		"OrderId":  req.OrderID,
		"TeamSlug": req.TeamSlug,
	}
	team, err := s.authSvc.AuthenticateMerchant(ctx, ports.ScopeInit, req.TeamSlug, req.Token, params)
	if err != nil {
		s.countInit("auth_failure")
		return nil, err
	}

	if err := s.validateInit(ctx, team, &req); err != nil {
		s.countInit("validation_failure")
		s.audit(ctx, team.Slug, domain.AuditActionInit, nil, domain.AuditOutcomeFailure, err.Error(), req.ClientIP)
		return nil, err
	}

	if _, err := s.authSvc.CheckReplay(ctx, ports.ScopeInit, team, req.Token); err != nil {
		s.countInit("replay")
		return nil, err
	}

	now := s.clock.Now()
	expiry := s.cfg.DefaultExpiry
	if req.PaymentExpiry > 0 {
		expiry = time.Duration(req.PaymentExpiry) * time.Minute
		if expiry < s.cfg.MinExpiry || expiry > s.cfg.MaxExpiry {
			s.countInit("validation_failure")
			return nil, apperror.Validation(apperror.FamilyInit, "payment expiry out of allowed range")
		}
	}

	language := req.Language
	if language == "" {
		language = "ru"
	}

	payment := &domain.Payment{
		ID:              uuid.New(),
		PaymentID:       domain.NewPaymentID(),
		OrderID:         req.OrderID,
		TeamID:          team.ID,
		TeamSlug:        team.Slug,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          domain.StatusNew,
		Description:     req.Description,
		SuccessURL:      firstURL(req.SuccessURL, team.SuccessURL),
		FailURL:         firstURL(req.FailURL, team.FailURL),
		NotificationURL: firstURL(req.NotificationURL, team.NotificationURL),
		Email:           req.Email,
		Language:        language,
		ExpiresAt:       now.Add(expiry),
		Receipt:         req.Receipt,
		Metadata:        req.Data,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		s.countInit("failure")
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	s.markReplay(ctx, ports.ScopeInit, team, req.Token)
	s.countInit("success")
	s.metrics.AddCounter(metrics.PaymentInitAmountTotal, float64(req.Amount),
		map[string]string{"currency": req.Currency})
	s.metrics.AddGauge(metrics.PaymentsInFlight, 1, nil)
	s.audit(ctx, team.Slug, domain.AuditActionInit, &payment.PaymentID, domain.AuditOutcomeSuccess, "", req.ClientIP)

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Str("team", team.Slug).
		Str("order_id", payment.OrderID).
		Int64("amount", payment.Amount).
		Msg("payment initialized")

	return &ports.InitResult{
		PaymentID:  payment.PaymentID,
		OrderID:    payment.OrderID,
		Status:     payment.Status,
		Amount:     payment.Amount,
		Currency:   payment.Currency,
		PaymentURL: s.cfg.FormBaseURL + "/pay/" + payment.PaymentID,
		ExpiresAt:  payment.ExpiresAt,
		CreatedAt:  payment.CreatedAt,
	}, nil
}

// Confirm captures an authorized payment. A repeated call carrying the same
// idempotency key returns the cached response without touching the bank.
func (s *PaymentServiceImpl) Confirm(ctx context.Context, req ports.ConfirmRequest) (*ports.ConfirmResult, error) {
	params := map[string]string{
		"TeamSlug":  req.TeamSlug,
		"PaymentId": req.PaymentID,
	}
	if req.Amount != nil {
		params["Amount"] = strconv.FormatInt(*req.Amount, 10)
	}
	team, err := s.authSvc.AuthenticateMerchant(ctx, ports.ScopeConfirm, req.TeamSlug, req.Token, params)
	if err != nil {
		s.countConfirm("auth_failure")
		return nil, err
	}

	// Idempotent replay must win over the replay window check, so a retried
	// confirm with the same key returns the cached body instead of a 403.
	idemKey := req.Data[domain.DataKeyIdempotency]
	if idemKey != "" {
		cached, err := s.cache.Get(ctx, domain.ConfirmIdempotencyKey(team.ID, idemKey))
		if err != nil {
			s.log.Warn().Err(err).Msg("confirm idempotency lookup failed")
		}
		if cached != nil {
			s.countConfirm("idempotent_replay")
			var res ports.ConfirmResult
			if err := json.Unmarshal(cached, &res); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("unmarshal cached confirm: %w", err))
			}
			return &res, nil
		}
	}

	if _, err := s.authSvc.CheckReplay(ctx, ports.ScopeConfirm, team, req.Token); err != nil {
		s.countConfirm("replay")
		return nil, err
	}

	payment, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		s.countConfirm("not_found")
		return nil, apperror.ErrNotFound(apperror.FamilyConfirm, "Payment")
	}

	if req.Amount != nil && *req.Amount != payment.Amount {
		s.countConfirm("validation_failure")
		return nil, apperror.Validation(apperror.FamilyConfirm, "amount does not match the authorized amount")
	}
	if payment.Status != domain.StatusAuthorized {
		s.countConfirm("wrong_state")
		return nil, apperror.ErrWrongState(apperror.FamilyConfirm,
			fmt.Sprintf("payment is %s, confirm requires AUTHORIZED", payment.Status))
	}

	// Claim the payment before calling the bank: concurrent confirms race on
	// the version column and exactly one wins.
	payment.ApplyStatus(domain.StatusConfirming, s.clock.Now())
	if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil {
		if err == domain.ErrVersionConflict {
			s.countConfirm("version_conflict")
			return nil, apperror.ErrConflict(apperror.FamilyConfirm, "payment was modified concurrently")
		}
		return nil, apperror.InternalError(fmt.Errorf("claim payment: %w", err))
	}

	bankRef, err := s.approvedAuthorizeRef(ctx, payment.PaymentID)
	if err != nil {
		s.rollbackToAuthorized(ctx, payment)
		return nil, err
	}

	result, err := s.bank.Capture(ctx, payment.PaymentID, bankRef, payment.Amount)
	if err != nil {
		s.recordBankTx(ctx, payment, domain.TransactionTypeCapture, nil, err)
		s.rollbackToAuthorized(ctx, payment)
		s.countConfirm("bank_error")
		s.audit(ctx, team.Slug, domain.AuditActionConfirm, &payment.PaymentID, domain.AuditOutcomeFailure, "bank unavailable", req.ClientIP)
		return nil, apperror.ErrBankUnavailable(apperror.FamilyConfirm, err)
	}
	s.recordBankTx(ctx, payment, domain.TransactionTypeCapture, result, nil)

	if !result.Approved {
		s.rollbackToAuthorized(ctx, payment)
		s.countConfirm("declined")
		s.audit(ctx, team.Slug, domain.AuditActionConfirm, &payment.PaymentID, domain.AuditOutcomeFailure, "capture declined", req.ClientIP)
		return nil, apperror.ErrWrongState(apperror.FamilyConfirm, "bank declined the capture")
	}

	// The money moved; the status write must not be lost to a racing writer.
	if err := s.persistStatus(ctx, payment, domain.StatusConfirmed); err != nil {
		return nil, err
	}

	res := &ports.ConfirmResult{
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Status:    payment.Status,
		Amount:    payment.Amount,
	}

	s.markReplay(ctx, ports.ScopeConfirm, team, req.Token)
	s.finishMutation(ctx, team.ID, payment)
	if idemKey != "" {
		s.cacheResult(ctx, domain.ConfirmIdempotencyKey(team.ID, idemKey), res)
	}
	s.countConfirm("success")
	s.metrics.AddGauge(metrics.PaymentsInFlight, -1, nil)
	s.audit(ctx, team.Slug, domain.AuditActionConfirm, &payment.PaymentID, domain.AuditOutcomeSuccess, "", req.ClientIP)

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Str("team", team.Slug).
		Msg("payment confirmed")

	return res, nil
}

// Cancel rolls a payment back. The concrete operation depends on the status:
// unpaid payments are cancelled, authorized ones reversed, captured ones
// refunded. Partial amounts are not supported; the full operation runs and a
// warning is attached.
func (s *PaymentServiceImpl) Cancel(ctx context.Context, req ports.CancelRequest) (*ports.CancelResult, error) {
	params := map[string]string{
		"TeamSlug":  req.TeamSlug,
		"PaymentId": req.PaymentID,
	}
	if req.Amount != nil {
		params["Amount"] = strconv.FormatInt(*req.Amount, 10)
	}
	team, err := s.authSvc.AuthenticateMerchant(ctx, ports.ScopeCancel, req.TeamSlug, req.Token, params)
	if err != nil {
		s.countCancel("auth_failure", "")
		return nil, err
	}

	extID := req.Data[domain.DataKeyExternalRequestID]
	if extID != "" {
		cached, err := s.cache.Get(ctx, domain.CancelIdempotencyKey(team.ID, extID))
		if err != nil {
			s.log.Warn().Err(err).Msg("cancel idempotency lookup failed")
		}
		if cached != nil {
			s.countCancel("idempotent_replay", "")
			var res ports.CancelResult
			if err := json.Unmarshal(cached, &res); err != nil {
				return nil, apperror.InternalError(fmt.Errorf("unmarshal cached cancel: %w", err))
			}
			return &res, nil
		}
	}

	if _, err := s.authSvc.CheckReplay(ctx, ports.ScopeCancel, team, req.Token); err != nil {
		s.countCancel("replay", "")
		return nil, err
	}

	payment, err := s.paymentRepo.GetByPaymentID(ctx, team.ID, req.PaymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		s.countCancel("not_found", "")
		return nil, apperror.ErrNotFound(apperror.FamilyCancel, "Payment")
	}

	operation, target, err := cancelOperationFor(payment.Status)
	if err != nil {
		s.countCancel("wrong_state", "")
		return nil, err
	}

	var warnings []string
	if req.Amount != nil {
		if *req.Amount > payment.Amount {
			s.countCancel("validation_failure", string(operation))
			return nil, apperror.Validation(apperror.FamilyCancel, "amount exceeds the payment amount")
		}
		if *req.Amount < payment.Amount {
			warnings = append(warnings,
				fmt.Sprintf("partial amounts are not supported; %s performed for the full amount", operation))
		}
	}

	if operation == ports.OperationFullRefund && !team.Features.Refunds {
		s.countCancel("refunds_disabled", string(operation))
		return nil, apperror.ErrWrongState(apperror.FamilyCancel, "refunds are not enabled for the team")
	}

	wasInFlight := !payment.Status.IsCacheStable()

	// Claim the row before any bank call: a version-guarded same-status write
	// so concurrent cancels race on the version column and exactly one reaches
	// the adapter, mirroring the confirm path.
	if operation != ports.OperationFullCancellation {
		payment.ApplyStatus(payment.Status, s.clock.Now())
		if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil {
			if err == domain.ErrVersionConflict {
				s.countCancel("version_conflict", string(operation))
				return nil, apperror.ErrConflict(apperror.FamilyCancel, "payment was modified concurrently")
			}
			return nil, apperror.InternalError(fmt.Errorf("claim payment: %w", err))
		}
	}

	switch operation {
	case ports.OperationFullCancellation:
		// Nothing was authorized yet, no bank call needed.

	case ports.OperationFullReversal:
		bankRef, err := s.approvedAuthorizeRef(ctx, payment.PaymentID)
		if err != nil {
			return nil, err
		}
		result, err := s.bank.Release(ctx, payment.PaymentID, bankRef)
		if err != nil {
			s.recordBankTx(ctx, payment, domain.TransactionTypeReverse, nil, err)
			s.countCancel("bank_error", string(operation))
			s.audit(ctx, team.Slug, domain.AuditActionReverse, &payment.PaymentID, domain.AuditOutcomeFailure, "bank unavailable", req.ClientIP)
			return nil, apperror.ErrBankUnavailable(apperror.FamilyCancel, err)
		}
		s.recordBankTx(ctx, payment, domain.TransactionTypeReverse, result, nil)
		if !result.Approved {
			s.countCancel("declined", string(operation))
			return nil, apperror.ErrWrongState(apperror.FamilyCancel, "bank declined the reversal")
		}

	case ports.OperationFullRefund:
		bankRef, err := s.approvedCaptureRef(ctx, payment.PaymentID)
		if err != nil {
			return nil, err
		}
		result, err := s.bank.Refund(ctx, payment.PaymentID, bankRef, payment.Amount)
		if err != nil {
			s.recordBankTx(ctx, payment, domain.TransactionTypeRefund, nil, err)
			s.countCancel("bank_error", string(operation))
			s.audit(ctx, team.Slug, domain.AuditActionRefund, &payment.PaymentID, domain.AuditOutcomeFailure, "bank unavailable", req.ClientIP)
			return nil, apperror.ErrBankUnavailable(apperror.FamilyCancel, err)
		}
		s.recordBankTx(ctx, payment, domain.TransactionTypeRefund, result, nil)
		if !result.Approved {
			s.countCancel("declined", string(operation))
			return nil, apperror.ErrWrongState(apperror.FamilyCancel, "bank declined the refund")
		}
	}

	if operation == ports.OperationFullCancellation {
		// No bank side effect exists, so a racing writer simply wins.
		payment.ApplyStatus(target, s.clock.Now())
		if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil {
			if err == domain.ErrVersionConflict {
				s.countCancel("version_conflict", string(operation))
				return nil, apperror.ErrConflict(apperror.FamilyCancel, "payment was modified concurrently")
			}
			return nil, apperror.InternalError(fmt.Errorf("cancel payment: %w", err))
		}
	} else {
		if err := s.persistStatus(ctx, payment, target); err != nil {
			return nil, err
		}
	}

	res := &ports.CancelResult{
		PaymentID:      payment.PaymentID,
		OrderID:        payment.OrderID,
		Status:         payment.Status,
		Operation:      operation,
		OriginalAmount: payment.Amount,
		Warnings:       warnings,
	}

	s.markReplay(ctx, ports.ScopeCancel, team, req.Token)
	s.finishMutation(ctx, team.ID, payment)
	if extID != "" {
		s.cacheResult(ctx, domain.CancelIdempotencyKey(team.ID, extID), res)
	}
	s.countCancel("success", string(operation))
	if wasInFlight {
		s.metrics.AddGauge(metrics.PaymentsInFlight, -1, nil)
	}
	s.audit(ctx, team.Slug, auditActionForCancel(operation), &payment.PaymentID, domain.AuditOutcomeSuccess, string(operation), req.ClientIP)

	s.log.Info().
		Str("payment_id", payment.PaymentID).
		Str("team", team.Slug).
		Str("operation", string(operation)).
		Msg("payment cancelled")

	return res, nil
}

// --- helpers ---

func (s *PaymentServiceImpl) validateInit(ctx context.Context, team *domain.Team, req *ports.InitRequest) error {
	if req.Amount < s.cfg.MinAmount || req.Amount > s.cfg.MaxAmount {
		return apperror.ErrLimitExceeded(apperror.FamilyInit, "amount outside the gateway limits")
	}
	if !team.CheckAmount(req.Amount) {
		return apperror.ErrLimitExceeded(apperror.FamilyInit, "amount outside the team's per-payment limits")
	}
	if !team.SupportsCurrency(req.Currency) {
		return apperror.Validation(apperror.FamilyInit, "currency not enabled for the team")
	}

	if len(req.Items) > 0 {
		var sum int64
		for _, it := range req.Items {
			sum += it.Amount
		}
		diff := sum - req.Amount
		if diff < -1 || diff > 1 {
			return apperror.Validation(apperror.FamilyInit, "order items do not sum to the payment amount")
		}
	}

	now := s.clock.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if team.Limits.DailyTxCount > 0 {
		count, err := s.paymentRepo.CountSince(ctx, team.ID, dayStart)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("count daily payments: %w", err))
		}
		if count >= team.Limits.DailyTxCount {
			return apperror.ErrLimitExceeded(apperror.FamilyInit, "daily payment count limit reached")
		}
	}
	if team.Limits.DailyAmount > 0 {
		sum, err := s.paymentRepo.SumAmountSince(ctx, team.ID, dayStart)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("sum daily payments: %w", err))
		}
		if sum+req.Amount > team.Limits.DailyAmount {
			return apperror.ErrLimitExceeded(apperror.FamilyInit, "daily amount limit reached")
		}
	}
	if team.Limits.MonthlyAmount > 0 {
		sum, err := s.paymentRepo.SumAmountSince(ctx, team.ID, monthStart)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("sum monthly payments: %w", err))
		}
		if sum+req.Amount > team.Limits.MonthlyAmount {
			return apperror.ErrLimitExceeded(apperror.FamilyInit, "monthly amount limit reached")
		}
	}

	return nil
}

func cancelOperationFor(status domain.PaymentStatus) (ports.CancelOperation, domain.PaymentStatus, error) {
	switch status {
	case domain.StatusInit, domain.StatusNew:
		return ports.OperationFullCancellation, domain.StatusCancelled, nil
	case domain.StatusAuthorized:
		return ports.OperationFullReversal, domain.StatusCancelled, nil
	case domain.StatusConfirmed, domain.StatusCaptured, domain.StatusCompleted:
		return ports.OperationFullRefund, domain.StatusRefunded, nil
	}
	return "", "", apperror.ErrWrongState(apperror.FamilyCancel,
		fmt.Sprintf("payment in status %s cannot be cancelled", status))
}

func auditActionForCancel(op ports.CancelOperation) domain.AuditAction {
	switch op {
	case ports.OperationFullReversal:
		return domain.AuditActionReverse
	case ports.OperationFullRefund:
		return domain.AuditActionRefund
	}
	return domain.AuditActionCancel
}

// approvedAuthorizeRef finds the bank reference of the approved authorization.
func (s *PaymentServiceImpl) approvedAuthorizeRef(ctx context.Context, paymentID string) (string, error) {
	return s.approvedRef(ctx, paymentID, domain.TransactionTypeAuthorize)
}

// approvedCaptureRef finds the bank reference of the approved capture.
func (s *PaymentServiceImpl) approvedCaptureRef(ctx context.Context, paymentID string) (string, error) {
	return s.approvedRef(ctx, paymentID, domain.TransactionTypeCapture)
}

func (s *PaymentServiceImpl) approvedRef(ctx context.Context, paymentID string, typ domain.TransactionType) (string, error) {
	txs, err := s.txRepo.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	for i := len(txs) - 1; i >= 0; i-- {
		if txs[i].Type == typ && txs[i].Status == domain.TransactionStatusApproved {
			return txs[i].BankRef, nil
		}
	}
	return "", apperror.InternalError(fmt.Errorf("no approved %s transaction for %s", typ, paymentID))
}

// recordBankTx appends the bank call outcome to the transaction journal.
// Journal writes are best-effort: the status machine is the source of truth.
func (s *PaymentServiceImpl) recordBankTx(ctx context.Context, p *domain.Payment, typ domain.TransactionType, result *ports.BankResult, callErr error) {
	tx := &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: p.PaymentID,
		Type:      typ,
		Amount:    p.Amount,
		CreatedAt: s.clock.Now(),
	}
	switch {
	case callErr != nil:
		tx.Status = domain.TransactionStatusError
		tx.ResponseMessage = "bank adapter error"
	case result.Approved:
		tx.Status = domain.TransactionStatusApproved
		tx.BankRef = result.BankRef
		tx.AuthCode = result.AuthCode
		tx.RRN = result.RRN
		tx.ResponseCode = result.ResponseCode
		tx.ResponseMessage = result.ResponseMessage
	default:
		tx.Status = domain.TransactionStatusDeclined
		tx.ResponseCode = result.ResponseCode
		tx.ResponseMessage = result.ResponseMessage
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		s.log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("record bank transaction failed")
	}
}

// rollbackToAuthorized returns a claimed payment to AUTHORIZED after a failed
// capture.
func (s *PaymentServiceImpl) rollbackToAuthorized(ctx context.Context, p *domain.Payment) {
	if err := s.persistStatus(ctx, p, domain.StatusAuthorized); err != nil {
		s.log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("rollback to AUTHORIZED failed")
	}
}

// persistStatus writes the status transition, reloading and retrying on
// version conflicts. Used when the bank side effect already happened and the
// write must land.
func (s *PaymentServiceImpl) persistStatus(ctx context.Context, p *domain.Payment, to domain.PaymentStatus) error {
	for attempt := 0; attempt < statusWriteAttempts; attempt++ {
		p.ApplyStatus(to, s.clock.Now())
		err := s.paymentRepo.UpdateStatus(ctx, p)
		if err == nil {
			return nil
		}
		if err != domain.ErrVersionConflict {
			return apperror.InternalError(fmt.Errorf("persist status %s: %w", to, err))
		}
		fresh, err := s.paymentRepo.GetByPaymentID(ctx, p.TeamID, p.PaymentID)
		if err != nil {
			return apperror.InternalError(fmt.Errorf("reload payment: %w", err))
		}
		if fresh == nil {
			return apperror.InternalError(fmt.Errorf("payment %s vanished during status write", p.PaymentID))
		}
		if fresh.Status == to {
			*p = *fresh
			return nil
		}
		if !domain.CanTransition(fresh.Status, to) {
			return apperror.InternalError(fmt.Errorf("payment %s moved to %s, cannot reach %s", p.PaymentID, fresh.Status, to))
		}
		*p = *fresh
	}
	return apperror.InternalError(fmt.Errorf("persist status %s: version conflicts exhausted", to))
}

// finishMutation drops status-cache entries overlapping the mutated payment.
func (s *PaymentServiceImpl) finishMutation(ctx context.Context, teamID uuid.UUID, p *domain.Payment) {
	err := s.cache.InvalidateTags(ctx,
		domain.PaymentTag(teamID, p.PaymentID),
		domain.OrderTag(teamID, p.OrderID))
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", p.PaymentID).Msg("status cache invalidation failed")
	}
}

// markReplay arms the replay window once the mutation committed. A marker
// write failure is logged, never surfaced: the operation already succeeded.
func (s *PaymentServiceImpl) markReplay(ctx context.Context, scope ports.AuthScope, team *domain.Team, token string) {
	if err := s.authSvc.MarkReplay(ctx, scope, team, token); err != nil {
		s.log.Warn().Err(err).Str("scope", string(scope)).Msg("replay marker write failed")
	}
}

func (s *PaymentServiceImpl) cacheResult(ctx context.Context, key string, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, body, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache write failed")
	}
}

func (s *PaymentServiceImpl) countInit(result string) {
	s.metrics.IncCounter(metrics.PaymentInitTotal, map[string]string{"result": result})
}

func (s *PaymentServiceImpl) countConfirm(result string) {
	s.metrics.IncCounter(metrics.PaymentConfirmTotal, map[string]string{"result": result})
}

func (s *PaymentServiceImpl) countCancel(result, operation string) {
	s.metrics.IncCounter(metrics.PaymentCancelTotal, map[string]string{"result": result, "operation": operation})
}

func (s *PaymentServiceImpl) audit(ctx context.Context, actor string, action domain.AuditAction, paymentID *string, outcome, details, ip string) {
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:        uuid.New(),
		Actor:     actor,
		Action:    action,
		PaymentID: paymentID,
		Outcome:   outcome,
		Details:   details,
		IPAddress: ip,
		CreatedAt: s.clock.Now(),
	})
}

func firstURL(override, fallback *string) *string {
	if override != nil && *override != "" {
		return override
	}
	return fallback
}
