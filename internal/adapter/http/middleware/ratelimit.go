package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "hosted-payment-gateway/internal/adapter/storage/redis"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/internal/metrics"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
	// Family fixes which error code family a 429 carries.
	Family int
}

// DefaultRateLimitRules returns the per-endpoint-group rate limits.
func DefaultRateLimitRules(perMinute int) map[string]RateLimitRule {
	base := int64(perMinute)
	if base <= 0 {
		base = 120
	}
	return map[string]RateLimitRule{
		"payment_init":    {Limit: base, Window: time.Minute, Family: apperror.FamilyInit},
		"payment_confirm": {Limit: base, Window: time.Minute, Family: apperror.FamilyConfirm},
		"payment_cancel":  {Limit: base / 2, Window: time.Minute, Family: apperror.FamilyCancel},
		"payment_check":   {Limit: base * 2, Window: time.Minute, Family: apperror.FamilyInit},
		"form_submit":     {Limit: 30, Window: time.Minute, Family: apperror.FamilyInit},
		"team_register":   {Limit: 5, Window: time.Hour, Family: apperror.FamilyConfirm},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
// A failing store degrades open: requests pass and the failure is logged.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, m ports.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", c.ClientIP(), group)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			m.IncCounter(metrics.RateLimitHitsTotal, map[string]string{"route": group})
			response.Error(c, apperror.ErrRateLimited(rule.Family))
			c.Abort()
			return
		}

		c.Next()
	}
}
