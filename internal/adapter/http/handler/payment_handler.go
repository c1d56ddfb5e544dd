package handler

import (
	"hosted-payment-gateway/internal/adapter/http/dto"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the merchant payment lifecycle endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Init handles POST /api/v1/paymentinit/init.
func (h *PaymentHandler) Init(c *gin.Context) {
	var req dto.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyInit, err.Error()))
		return
	}

	items := make([]ports.InitItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, ports.InitItem{
			Name:     it.Name,
			Price:    it.Price,
			Quantity: it.Quantity,
			Amount:   it.Amount,
		})
	}

	result, err := h.paymentSvc.Init(c.Request.Context(), ports.InitRequest{
		TeamSlug:        req.TeamSlug,
		Token:           req.Token,
		Amount:          req.Amount,
		Currency:        req.Currency,
		OrderID:         req.OrderID,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
		PaymentExpiry:   req.PaymentExpiry,
		Email:           req.Email,
		Language:        req.Language,
		Description:     req.Description,
		Items:           items,
		Data:            req.Data,
		Receipt:         req.Receipt,
		ClientIP:        c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Confirm handles POST /api/v1/paymentconfirm/confirm.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyConfirm, err.Error()))
		return
	}

	result, err := h.paymentSvc.Confirm(c.Request.Context(), ports.ConfirmRequest{
		TeamSlug:    req.TeamSlug,
		Token:       req.Token,
		PaymentID:   req.PaymentID,
		Amount:      req.Amount,
		Description: req.Description,
		Data:        req.Data,
		ClientIP:    c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// Cancel handles POST /api/v1/paymentcancel/cancel.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyCancel, err.Error()))
		return
	}

	result, err := h.paymentSvc.Cancel(c.Request.Context(), ports.CancelRequest{
		TeamSlug:  req.TeamSlug,
		Token:     req.Token,
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Data:      req.Data,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}
