package bank

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
)

// ErrBankUnavailable simulates a transport failure talking to the acquirer.
var ErrBankUnavailable = errors.New("bank unavailable")

// Test PAN suffixes with fixed outcomes.
const (
	panSuffixDecline = "0002" // declined: insufficient funds
	panSuffixError   = "0119" // transport error
)

type authState struct {
	paymentID string
	amount    int64
	captured  int64
	released  bool
	refunded  bool
}

// StubBank is an in-process acquirer used in development and tests. It keeps
// authorization state per bank reference so capture, release and refund behave
// like a real host: out-of-order operations are declined, not errored.
type StubBank struct {
	mu    sync.Mutex
	seq   int64
	auths map[string]*authState
}

// NewStubBank creates an empty stub acquirer.
func NewStubBank() *StubBank {
	return &StubBank{auths: make(map[string]*authState)}
}

// Authorize places a hold on the card. Outcomes are keyed off the PAN suffix
// so tests can provoke declines and outages deterministically.
func (b *StubBank) Authorize(ctx context.Context, req ports.BankAuthorizeRequest) (*ports.BankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.HasSuffix(req.PAN, panSuffixError) {
		return nil, ErrBankUnavailable
	}
	if strings.HasSuffix(req.PAN, panSuffixDecline) {
		return &ports.BankResult{
			Approved:        false,
			MaskedPAN:       domain.MaskPAN(req.PAN),
			ResponseCode:    "51",
			ResponseMessage: "insufficient funds",
		}, nil
	}

	b.mu.Lock()
	b.seq++
	ref := fmt.Sprintf("bnk_%08d", b.seq)
	b.auths[ref] = &authState{paymentID: req.PaymentID, amount: req.Amount}
	seq := b.seq
	b.mu.Unlock()

	return &ports.BankResult{
		Approved:        true,
		BankRef:         ref,
		AuthCode:        fmt.Sprintf("%06d", seq%1000000),
		RRN:             fmt.Sprintf("%012d", seq),
		MaskedPAN:       domain.MaskPAN(req.PAN),
		ResponseCode:    "00",
		ResponseMessage: "approved",
	}, nil
}

// Capture settles a previously placed hold.
func (b *StubBank) Capture(ctx context.Context, paymentID, bankRef string, amount int64) (*ports.BankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.auths[bankRef]
	switch {
	case !ok || st.paymentID != paymentID:
		return declined(bankRef, "25", "original transaction not found"), nil
	case st.released:
		return declined(bankRef, "12", "authorization released"), nil
	case st.captured > 0:
		return declined(bankRef, "94", "already captured"), nil
	case amount > st.amount:
		return declined(bankRef, "13", "amount exceeds authorization"), nil
	}
	st.captured = amount
	return approved(bankRef), nil
}

// Release voids an uncaptured hold.
func (b *StubBank) Release(ctx context.Context, paymentID, bankRef string) (*ports.BankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.auths[bankRef]
	switch {
	case !ok || st.paymentID != paymentID:
		return declined(bankRef, "25", "original transaction not found"), nil
	case st.captured > 0:
		return declined(bankRef, "12", "already captured"), nil
	case st.released:
		return declined(bankRef, "12", "already released"), nil
	}
	st.released = true
	return approved(bankRef), nil
}

// Refund returns captured funds to the card.
func (b *StubBank) Refund(ctx context.Context, paymentID, bankRef string, amount int64) (*ports.BankResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.auths[bankRef]
	switch {
	case !ok || st.paymentID != paymentID:
		return declined(bankRef, "25", "original transaction not found"), nil
	case st.captured == 0:
		return declined(bankRef, "12", "nothing captured"), nil
	case st.refunded:
		return declined(bankRef, "94", "already refunded"), nil
	case amount > st.captured:
		return declined(bankRef, "13", "amount exceeds capture"), nil
	}
	st.refunded = true
	return approved(bankRef), nil
}

func approved(ref string) *ports.BankResult {
	return &ports.BankResult{
		Approved:        true,
		BankRef:         ref,
		ResponseCode:    "00",
		ResponseMessage: "approved",
	}
}

func declined(ref, code, msg string) *ports.BankResult {
	return &ports.BankResult{
		Approved:        false,
		BankRef:         ref,
		ResponseCode:    code,
		ResponseMessage: msg,
	}
}
