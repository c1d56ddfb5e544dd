package integration

import (
	"context"
	"sync"
	"time"

	"hosted-payment-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// In-memory repositories backing the integration stack. UpdateStatus mirrors
// the PostgreSQL repo's optimistic write: the stored version must match the
// caller's, and the version is bumped on success. That keeps the concurrency
// tests honest without a running database.

type inMemoryTeamRepo struct {
	mu    sync.RWMutex
	teams map[string]*domain.Team
}

func newInMemoryTeamRepo() *inMemoryTeamRepo {
	return &inMemoryTeamRepo{teams: make(map[string]*domain.Team)}
}

func (r *inMemoryTeamRepo) Create(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *team
	r.teams[team.Slug] = &cp
	return nil
}

func (r *inMemoryTeamRepo) GetBySlug(_ context.Context, slug string) (*domain.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[slug]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTeamRepo) Update(_ context.Context, team *domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *team
	r.teams[team.Slug] = &cp
	return nil
}

func (r *inMemoryTeamRepo) RecordAuthFailure(_ context.Context, id uuid.UUID, lockedUntil *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.ID == id {
			t.FailedAuthAttempts++
			if lockedUntil != nil {
				until := *lockedUntil
				t.LockedUntil = &until
			}
			return nil
		}
	}
	return nil
}

func (r *inMemoryTeamRepo) ResetAuthFailures(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.ID == id {
			t.FailedAuthAttempts = 0
			t.LockedUntil = nil
			return nil
		}
	}
	return nil
}

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[string]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.PaymentID] = &cp
	return nil
}

func (r *inMemoryPaymentRepo) GetByPaymentID(_ context.Context, teamID uuid.UUID, paymentID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[paymentID]
	if !ok || p.TeamID != teamID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) GetByPaymentIDAny(_ context.Context, paymentID string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPaymentRepo) ListByOrderID(_ context.Context, teamID uuid.UUID, orderID string) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.TeamID == teamID && p.OrderID == orderID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(_ context.Context, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.payments[p.PaymentID]
	if !ok || stored.Version != p.Version {
		return domain.ErrVersionConflict
	}
	cp := *p
	cp.Version++
	r.payments[p.PaymentID] = &cp
	p.Version = cp.Version
	return nil
}

func (r *inMemoryPaymentRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payment
	for _, p := range r.payments {
		if p.Status.ExpiryTarget() != "" && p.IsExpired(now) {
			out = append(out, *p)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *inMemoryPaymentRepo) SumAmountSince(_ context.Context, teamID uuid.UUID, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, p := range r.payments {
		if p.TeamID == teamID && !p.CreatedAt.Before(since) {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryPaymentRepo) CountSince(_ context.Context, teamID uuid.UUID, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, p := range r.payments {
		if p.TeamID == teamID && !p.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type inMemoryTransactionRepo struct {
	mu  sync.RWMutex
	txs []domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{}
}

func (r *inMemoryTransactionRepo) Create(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs = append(r.txs, *tx)
	return nil
}

func (r *inMemoryTransactionRepo) ListByPaymentID(_ context.Context, paymentID string) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Transaction
	for _, tx := range r.txs {
		if tx.PaymentID == paymentID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// countByType counts approved bank calls of one type for a payment.
func (r *inMemoryTransactionRepo) countByType(paymentID string, typ domain.TransactionType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tx := range r.txs {
		if tx.PaymentID == paymentID && tx.Type == typ && tx.Status == domain.TransactionStatusApproved {
			n++
		}
	}
	return n
}

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(_ context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}
