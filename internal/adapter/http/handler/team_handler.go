package handler

import (
	"hosted-payment-gateway/internal/adapter/http/dto"
	"hosted-payment-gateway/internal/adapter/http/middleware"
	"hosted-payment-gateway/internal/core/domain"
	"hosted-payment-gateway/internal/core/ports"
	"hosted-payment-gateway/pkg/apperror"
	"hosted-payment-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// TeamHandler handles team registration, the self-service profile and the
// operator surface.
type TeamHandler struct {
	teamSvc ports.TeamService
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teamSvc ports.TeamService) *TeamHandler {
	return &TeamHandler{teamSvc: teamSvc}
}

// Register handles POST /api/v1/teamregistration/register.
func (h *TeamHandler) Register(c *gin.Context) {
	var req dto.RegisterTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyConfirm, err.Error()))
		return
	}

	result, err := h.teamSvc.Register(c.Request.Context(), ports.RegisterTeamRequest{
		TeamSlug:            req.TeamSlug,
		Password:            req.Password,
		Name:                req.Name,
		Email:               deref(req.Email),
		Phone:               deref(req.Phone),
		SuccessURL:          req.SuccessURL,
		FailURL:             req.FailURL,
		NotificationURL:     req.NotificationURL,
		SupportedCurrencies: req.SupportedCurrencies,
		ClientIP:            c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Me handles GET /api/v1/teams/me behind basic auth.
func (h *TeamHandler) Me(c *gin.Context) {
	v, ok := c.Get(middleware.CtxTeamKey)
	if !ok {
		response.Error(c, apperror.ErrAuth(apperror.FamilyConfirm))
		return
	}
	team := v.(*domain.Team)
	response.OK(c, gin.H{"team": h.teamSvc.Profile(c.Request.Context(), team)})
}

// AdminUpdate handles PUT /api/v1/admin/teams/:slug behind the admin token.
func (h *TeamHandler) AdminUpdate(c *gin.Context) {
	var req dto.AdminTeamUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(apperror.FamilyConfirm, err.Error()))
		return
	}

	upd := ports.TeamUpdate{
		Name:                req.Name,
		IsActive:            req.IsActive,
		SupportedCurrencies: req.SupportedCurrencies,
		NotificationURL:     req.NotificationURL,
	}
	if req.Limits != nil {
		upd.Limits = &domain.TeamLimits{
			MinAmount:     req.Limits.MinAmount,
			MaxAmount:     req.Limits.MaxAmount,
			DailyAmount:   req.Limits.DailyAmount,
			DailyTxCount:  req.Limits.DailyTxCount,
			MonthlyAmount: req.Limits.MonthlyAmount,
		}
	}
	if req.Features != nil {
		upd.Features = &domain.TeamFeatures{
			ThreeDS:           req.Features.ThreeDS,
			Tokenization:      req.Features.Tokenization,
			Refunds:           req.Features.Refunds,
			PartialRefunds:    req.Features.PartialRefunds,
			Reversals:         req.Features.Reversals,
			Webhooks:          req.Features.Webhooks,
			WebhookRetries:    req.Features.WebhookRetries,
			WebhookTimeoutSec: req.Features.WebhookTimeoutSec,
		}
	}

	team, err := h.teamSvc.AdminUpdate(c.Request.Context(), c.Param("slug"), upd)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"team": team})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
