package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/clock"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FormServiceConfig holds the hosted form tunables.
type FormServiceConfig struct {
	SessionTTL time.Duration
}

// FormServiceImpl implements ports.FormService: it renders the hosted card
// form, takes the card submit and drives the authorization. Card data exists
// in memory only for the duration of the bank call; nothing but the masked
// PAN survives it.
type FormServiceImpl struct {
	paymentRepo ports.PaymentRepository
	txRepo      ports.TransactionRepository
	sessionSvc  ports.SessionService
	bank        ports.BankAdapter
	cache       ports.StatusCache
	auditSvc    ports.AuditService
	metrics     ports.Metrics
	clock       clock.Clock
	log         zerolog.Logger
	cfg         FormServiceConfig

	formTmpl   *template.Template
	resultTmpl *template.Template
}

// NewFormService creates a new FormServiceImpl.
func NewFormService(
	paymentRepo ports.PaymentRepository,
	txRepo ports.TransactionRepository,
	sessionSvc ports.SessionService,
	bank ports.BankAdapter,
	cache ports.StatusCache,
	auditSvc ports.AuditService,
	m ports.Metrics,
	clk clock.Clock,
	log zerolog.Logger,
	cfg FormServiceConfig,
) *FormServiceImpl {
	return &FormServiceImpl{
		paymentRepo: paymentRepo,
		txRepo:      txRepo,
		sessionSvc:  sessionSvc,
		bank:        bank,
		cache:       cache,
		auditSvc:    auditSvc,
		metrics:     m,
		clock:       clk,
		log:         log,
		cfg:         cfg,
		formTmpl:    template.Must(template.New("form").Parse(paymentFormHTML)),
		resultTmpl:  template.Must(template.New("result").Parse(paymentResultHTML)),
	}
}

// Render shows the card form for a pending payment. The first render moves
// the payment NEW -> FORM_SHOWED; later renders reuse the status. A payment
// that is no longer payable gets an informational status page, no mutation.
func (s *FormServiceImpl) Render(ctx context.Context, paymentID string) (*ports.FormPage, error) {
	payment, err := s.load(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.StatusNew, domain.StatusInit:
		payment.ApplyStatus(domain.StatusFormShowed, s.clock.Now())
		if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil {
			if err != domain.ErrVersionConflict {
				return nil, apperror.InternalError(fmt.Errorf("mark form showed: %w", err))
			}
			// Someone else rendered first; reload and fall through.
			fresh, err := s.paymentRepo.GetByPaymentIDAny(ctx, paymentID)
			if err != nil || fresh == nil {
				return nil, apperror.InternalError(fmt.Errorf("reload payment: %w", err))
			}
			payment = fresh
			if payment.Status != domain.StatusFormShowed {
				return s.statusPage(payment)
			}
		}
	case domain.StatusFormShowed:
		// Refresh is fine, a new session token is issued.
	default:
		return s.statusPage(payment)
	}

	session, err := s.sessionSvc.IssueFormSession(payment.PaymentID, s.cfg.SessionTTL)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("issue form session: %w", err))
	}

	s.audit(ctx, payment, domain.AuditActionFormShow, domain.AuditOutcomeSuccess, "")

	var buf bytes.Buffer
	err = s.formTmpl.Execute(&buf, map[string]interface{}{
		"PaymentID":    payment.PaymentID,
		"OrderID":      payment.OrderID,
		"Amount":       formatAmount(payment.Amount),
		"Currency":     payment.Currency,
		"Description":  payment.Description,
		"SessionToken": session,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("render form: %w", err))
	}
	return &ports.FormPage{HTML: buf.String()}, nil
}

// Submit takes the card data, authorizes it with the bank and returns where
// to send the cardholder.
func (s *FormServiceImpl) Submit(ctx context.Context, req ports.SubmitRequest) (*ports.SubmitResult, error) {
	boundID, err := s.sessionSvc.ValidateFormSession(req.SessionToken)
	if err != nil || boundID != req.PaymentID {
		return nil, apperror.ErrAuth(apperror.FamilyInit)
	}

	payment, err := s.load(ctx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusFormShowed {
		return nil, apperror.ErrWrongState(apperror.FamilyInit, "payment is not awaiting card entry")
	}

	if err := domain.ValidateCard(req.PAN, req.Expiry, req.CVV, s.clock.Now()); err != nil {
		return nil, apperror.Validation(apperror.FamilyInit, err.Error())
	}

	// Claim before the bank call; a concurrent submit loses on the version.
	payment.ApplyStatus(domain.StatusAuthorizing, s.clock.Now())
	if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil {
		if err == domain.ErrVersionConflict {
			return nil, apperror.ErrConflict(apperror.FamilyInit, "payment is already being processed")
		}
		return nil, apperror.InternalError(fmt.Errorf("claim payment: %w", err))
	}

	result, err := s.bank.Authorize(ctx, ports.BankAuthorizeRequest{
		PaymentID: payment.PaymentID,
		PAN:       req.PAN,
		Expiry:    req.Expiry,
		CVV:       req.CVV,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
	})

	tx := &domain.Transaction{
		ID:        uuid.New(),
		PaymentID: payment.PaymentID,
		Type:      domain.TransactionTypeAuthorize,
		Amount:    payment.Amount,
		CreatedAt: s.clock.Now(),
	}

	var target domain.PaymentStatus
	switch {
	case err != nil:
		tx.Status = domain.TransactionStatusError
		tx.ResponseMessage = "bank adapter error"
		target = domain.StatusFailed
	case result.Approved:
		tx.Status = domain.TransactionStatusApproved
		tx.BankRef = result.BankRef
		tx.AuthCode = result.AuthCode
		tx.RRN = result.RRN
		tx.ResponseCode = result.ResponseCode
		tx.ResponseMessage = result.ResponseMessage
		target = domain.StatusAuthorized
		payment.CardMask = result.MaskedPAN
	default:
		tx.Status = domain.TransactionStatusDeclined
		tx.ResponseCode = result.ResponseCode
		tx.ResponseMessage = result.ResponseMessage
		target = domain.StatusAuthFail
	}

	if txErr := s.txRepo.Create(ctx, tx); txErr != nil {
		s.log.Error().Err(txErr).Str("payment_id", payment.PaymentID).Msg("record authorize transaction failed")
	}

	payment.ApplyStatus(target, s.clock.Now())
	if upErr := s.paymentRepo.UpdateStatus(ctx, payment); upErr != nil {
		s.log.Error().Err(upErr).Str("payment_id", payment.PaymentID).Msg("authorize status write failed")
	}

	if cErr := s.cache.InvalidateTags(ctx,
		domain.PaymentTag(payment.TeamID, payment.PaymentID),
		domain.OrderTag(payment.TeamID, payment.OrderID)); cErr != nil {
		s.log.Warn().Err(cErr).Msg("status cache invalidation failed")
	}

	switch target {
	case domain.StatusAuthorized:
		s.audit(ctx, payment, domain.AuditActionAuthorize, domain.AuditOutcomeSuccess, "")
		s.log.Info().
			Str("payment_id", payment.PaymentID).
			Str("card_mask", payment.CardMask).
			Msg("payment authorized")
		return &ports.SubmitResult{
			Status:      payment.Status,
			RedirectURL: redirectURL(payment.SuccessURL, payment.PaymentID),
		}, nil
	case domain.StatusFailed:
		s.metrics.AddGauge(metrics.PaymentsInFlight, -1, nil)
		s.audit(ctx, payment, domain.AuditActionAuthorize, domain.AuditOutcomeFailure, "bank unavailable")
		return nil, apperror.ErrBankUnavailable(apperror.FamilyInit, err)
	default:
		s.metrics.AddGauge(metrics.PaymentsInFlight, -1, nil)
		s.audit(ctx, payment, domain.AuditActionAuthorize, domain.AuditOutcomeFailure, "declined")
		s.log.Info().
			Str("payment_id", payment.PaymentID).
			Str("response_code", tx.ResponseCode).
			Msg("authorization declined")
		return &ports.SubmitResult{
			Status:      payment.Status,
			RedirectURL: redirectURL(payment.FailURL, payment.PaymentID),
		}, nil
	}
}

// ResultPage renders the terminal page the cardholder lands on.
func (s *FormServiceImpl) ResultPage(ctx context.Context, paymentID string) (*ports.FormPage, error) {
	payment, err := s.paymentRepo.GetByPaymentIDAny(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound(apperror.FamilyInit, "Payment")
	}
	return s.statusPage(payment)
}

// statusPage renders the informational state page for a payment.
func (s *FormServiceImpl) statusPage(payment *domain.Payment) (*ports.FormPage, error) {
	var buf bytes.Buffer
	err := s.resultTmpl.Execute(&buf, map[string]interface{}{
		"PaymentID": payment.PaymentID,
		"OrderID":   payment.OrderID,
		"Status":    string(payment.Status),
		"Amount":    formatAmount(payment.Amount),
		"Currency":  payment.Currency,
		"Paid":      isPaid(payment.Status),
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("render status page: %w", err))
	}
	return &ports.FormPage{HTML: buf.String()}, nil
}

// load fetches a payment for the form flow, applying lazy expiry: an overdue
// payment moves to its expiry target before the caller inspects the status.
func (s *FormServiceImpl) load(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := s.paymentRepo.GetByPaymentIDAny(ctx, paymentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound(apperror.FamilyInit, "Payment")
	}

	now := s.clock.Now()
	if target := payment.Status.ExpiryTarget(); target != "" && payment.IsExpired(now) {
		payment.ApplyStatus(target, now)
		if err := s.paymentRepo.UpdateStatus(ctx, payment); err != nil && err != domain.ErrVersionConflict {
			s.log.Warn().Err(err).Str("payment_id", payment.PaymentID).Msg("lazy expiry write failed")
		}
	}
	return payment, nil
}

func (s *FormServiceImpl) audit(ctx context.Context, p *domain.Payment, action domain.AuditAction, outcome, details string) {
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:        uuid.New(),
		Actor:     p.TeamSlug,
		Action:    action,
		PaymentID: &p.PaymentID,
		Outcome:   outcome,
		Details:   details,
		CreatedAt: s.clock.Now(),
	})
}

func redirectURL(override *string, paymentID string) string {
	if override != nil && *override != "" {
		return *override
	}
	return "/api/v1/paymentform/result/" + paymentID
}

func isPaid(s domain.PaymentStatus) bool {
	switch s {
	case domain.StatusAuthorized, domain.StatusConfirming, domain.StatusConfirmed,
		domain.StatusCaptured, domain.StatusCompleted:
		return true
	}
	return false
}

// formatAmount renders minor units as a decimal string.
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
