package handler

import (
	"hosted-payment-gateway/internal/adapter/http/dto"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// StatusHandler handles merchant status queries.
type StatusHandler struct {
	statusSvc ports.StatusService
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(statusSvc ports.StatusService) *StatusHandler {
	return &StatusHandler{statusSvc: statusSvc}
}

// Check handles POST /api/v1/paymentcheck/check.
func (h *StatusHandler) Check(c *gin.Context) {
	var req dto.CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyInit, err.Error()))
		return
	}
	h.check(c, req)
}

// Status handles GET /api/v1/paymentcheck/status with the same parameters
// bound from the query string.
func (h *StatusHandler) Status(c *gin.Context) {
	var req dto.CheckRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyInit, err.Error()))
		return
	}
	h.check(c, req)
}

func (h *StatusHandler) check(c *gin.Context, req dto.CheckRequest) {
	result, err := h.statusSvc.Check(c.Request.Context(), ports.CheckRequest{
		TeamSlug:            req.TeamSlug,
		Token:               req.Token,
		PaymentID:           req.PaymentID,
		OrderID:             req.OrderID,
		IncludeCard:         req.IncludeCard,
		IncludeTransactions: req.IncludeTransactions,
		IncludeCustomer:     req.IncludeCustomer,
		IncludeReceipt:      req.IncludeReceipt,
		Language:            req.Language,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
