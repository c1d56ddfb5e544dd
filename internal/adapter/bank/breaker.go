package bank

import (
	"context"
	"time"

	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the circuit breaker around the bank adapter.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker. Declines are business outcomes
	// and never count as failures; only transport errors do.
	ConsecutiveFailures uint32
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// Interval clears closed-state counts. Zero means never.
	Interval time.Duration
	// CallTimeout bounds each individual bank call.
	CallTimeout time.Duration
}

// Breaker wraps a BankAdapter with a shared circuit breaker, per-call
// timeouts and request metrics. The inner adapter stays metrics-free.
type Breaker struct {
	inner   ports.BankAdapter
	cb      *gobreaker.CircuitBreaker
	metrics ports.Metrics
	timeout time.Duration
}

// NewBreaker wraps inner with circuit breaking and metrics.
func NewBreaker(inner ports.BankAdapter, m ports.Metrics, log zerolog.Logger, cfg BreakerConfig) *Breaker {
	settings := gobreaker.Settings{
		Name:     "bank",
		Interval: cfg.Interval,
		Timeout:  cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}
	return &Breaker{
		inner:   inner,
		cb:      gobreaker.NewCircuitBreaker(settings),
		metrics: m,
		timeout: cfg.CallTimeout,
	}
}

// Authorize implements ports.BankAdapter.
func (b *Breaker) Authorize(ctx context.Context, req ports.BankAuthorizeRequest) (*ports.BankResult, error) {
	return b.do(ctx, "authorize", func(ctx context.Context) (*ports.BankResult, error) {
		return b.inner.Authorize(ctx, req)
	})
}

// Capture implements ports.BankAdapter.
func (b *Breaker) Capture(ctx context.Context, paymentID, bankRef string, amount int64) (*ports.BankResult, error) {
	return b.do(ctx, "capture", func(ctx context.Context) (*ports.BankResult, error) {
		return b.inner.Capture(ctx, paymentID, bankRef, amount)
	})
}

// Release implements ports.BankAdapter.
func (b *Breaker) Release(ctx context.Context, paymentID, bankRef string) (*ports.BankResult, error) {
	return b.do(ctx, "release", func(ctx context.Context) (*ports.BankResult, error) {
		return b.inner.Release(ctx, paymentID, bankRef)
	})
}

// Refund implements ports.BankAdapter.
func (b *Breaker) Refund(ctx context.Context, paymentID, bankRef string, amount int64) (*ports.BankResult, error) {
	return b.do(ctx, "refund", func(ctx context.Context) (*ports.BankResult, error) {
		return b.inner.Refund(ctx, paymentID, bankRef, amount)
	})
}

func (b *Breaker) do(ctx context.Context, op string, fn func(context.Context) (*ports.BankResult, error)) (*ports.BankResult, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	b.metrics.ObserveHistogram(metrics.BankRequestDurationSeconds, time.Since(start).Seconds(), map[string]string{"op": op})

	if err != nil {
		b.metrics.IncCounter(metrics.BankRequestsTotal, map[string]string{"op": op, "result": "error"})
		return nil, err
	}

	res := out.(*ports.BankResult)
	result := "approved"
	if !res.Approved {
		result = "declined"
	}
	b.metrics.IncCounter(metrics.BankRequestsTotal, map[string]string{"op": op, "result": result})
	return res, nil
}
