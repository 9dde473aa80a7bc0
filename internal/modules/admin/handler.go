package admin

import (
	"errors"
	"net/http"

	"mealsub/internal/gateway"
	"mealsub/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	// gateway definitions, read by the registry at startup
	admin.GET("/payments/gateways", h.ListGateways)
	admin.PUT("/payments/gateways/:name", h.UpsertGateway)

	// sessions
	admin.GET("/payments/stats", h.GetStats)
	admin.POST("/payments/sessions/expire", h.ExpireSessions)
}

// ListGateways godoc
// @Summary List stored gateway definitions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} GatewayConfigView
// @Router /admin/payments/gateways [get]
func (h *Handler) ListGateways(c *gin.Context) {
	items, err := h.service.ListGatewayConfigs(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load gateway configs")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"gateways": items})
}

// UpsertGateway godoc
// @Summary Create or replace a gateway definition
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param name path string true "Gateway name"
// @Param request body UpsertGatewayRequest true "Definition"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /admin/payments/gateways/{name} [put]
func (h *Handler) UpsertGateway(c *gin.Context) {
	var req UpsertGatewayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}

	cfg, err := h.service.UpsertGatewayConfig(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		var missing *gateway.MissingCredentialsError
		switch {
		case errors.As(err, &missing):
			response.ErrorWithDetails(c, http.StatusBadRequest, "MISSING_CREDENTIALS", "Gateway credentials are incomplete", gin.H{"missing": missing.Fields})
		case errors.Is(err, ErrUnknownGateway), errors.Is(err, gateway.ErrUnknownGateway):
			response.Error(c, http.StatusNotFound, "UNKNOWN_GATEWAY", "Unknown gateway")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save gateway config")
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"name":               cfg.Name,
		"is_active":          cfg.IsActive,
		"mode":               cfg.Mode,
		"applies_on_restart": true,
	})
}

// GetStats godoc
// @Summary Payment session counts by status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PaymentStats
// @Router /admin/payments/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.PaymentStats(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load stats")
		return
	}
	response.Success(c, http.StatusOK, stats)
}

// ExpireSessions godoc
// @Summary Expire overdue pending sessions now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Router /admin/payments/sessions/expire [post]
func (h *Handler) ExpireSessions(c *gin.Context) {
	n, err := h.service.ExpireSessions(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to expire sessions")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"expired": n})
}
