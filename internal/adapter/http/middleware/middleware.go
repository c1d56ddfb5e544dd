package middleware

import (
	"fmt"
	"net/http"
	"time"

	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys.
const (
	CtxTeamKey = "team"
)

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// MaxBodySize returns middleware that limits the request body size.
// Once the limit is exceeded the reader returns an error and the
// request is rejected with 413 Payload Too Large.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// BasicAuth authenticates the self-service surface with teamSlug:password
// and stores the team in the context.
func BasicAuth(authSvc ports.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug, password, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="teams"`)
			response.Error(c, apperror.ErrAuth(apperror.FamilyConfirm))
			c.Abort()
			return
		}

		team, err := authSvc.AuthenticateBasic(c.Request.Context(), slug, password)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxTeamKey, team)
		c.Next()
	}
}

// AdminAuth guards the operator surface with the shared bearer token.
func AdminAuth(authSvc ports.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			response.Error(c, apperror.ErrAuth(apperror.FamilyConfirm))
			c.Abort()
			return
		}
		if err := authSvc.AuthenticateAdmin(authHeader[7:]); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
