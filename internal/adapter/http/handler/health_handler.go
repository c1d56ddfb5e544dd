package handler

import (
	"net/http"

	"hosted-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck returns a handler that pings every registered dependency and
// reports 200 when all are reachable, 503 otherwise.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]string, len(checkers))
		healthy := true
		for _, ch := range checkers {
			if err := ch.Ping(c.Request.Context()); err != nil {
				deps[ch.Name()] = "unavailable"
				healthy = false
			} else {
				deps[ch.Name()] = "ok"
			}
		}

		status := http.StatusOK
		state := "healthy"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":       state,
			"dependencies": deps,
		})
	}
}
