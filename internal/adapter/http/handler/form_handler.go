package handler

import (
	"net/http"

	"hosted-payment-gateway/internal/adapter/http/dto"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// FormHandler serves the hosted card form pages and the card submit.
type FormHandler struct {
	formSvc ports.FormService
}

// NewFormHandler creates a new FormHandler.
func NewFormHandler(formSvc ports.FormService) *FormHandler {
	return &FormHandler{formSvc: formSvc}
}

// Render handles GET /api/v1/paymentform/render/:paymentId.
func (h *FormHandler) Render(c *gin.Context) {
	page, err := h.formSvc.Render(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page.HTML))
}

// Submit handles POST /api/v1/paymentform/submit (urlencoded card form).
// On success the cardholder is redirected to the outcome page; card fields
// never appear in the response or in logs.
func (h *FormHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyInit, "invalid form data"))
		return
	}

	result, err := h.formSvc.Submit(c.Request.Context(), ports.SubmitRequest{
		PaymentID:    req.PaymentID,
		SessionToken: req.SessionToken,
		PAN:          req.PAN,
		Expiry:       req.Expiry,
		CVV:          req.CVV,
		CardHolder:   req.CardHolder,
		Email:        req.Email,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.RedirectURL)
}

// ResultPage handles GET /api/v1/paymentform/result/:paymentId.
func (h *FormHandler) ResultPage(c *gin.Context) {
	page, err := h.formSvc.ResultPage(c.Request.Context(), c.Param("paymentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page.HTML))
}
