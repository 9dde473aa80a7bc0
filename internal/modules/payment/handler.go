package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mealsub/internal/domain"
	"mealsub/internal/gateway"
	"mealsub/internal/pkg/lock"
	"mealsub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// webhookIDKeys are the identifier names providers use in notifications.
var webhookIDKeys = []string{"session_id", "payment_id", "order_id"}

type HandlerOptions struct {
	Locker         lock.Locker
	LockTTL        time.Duration
	DedupCacheSize int
}

type Handler struct {
	service    *Service
	settlement *Settlement
	locker     lock.Locker
	lockTTL    time.Duration
	settled    *lru.Cache[string, struct{}]
	log        *logrus.Entry
}

func NewHandler(service *Service, settlement *Settlement, opts HandlerOptions, log *logrus.Entry) *Handler {
	if opts.Locker == nil {
		opts.Locker = lock.Nop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.DedupCacheSize <= 0 {
		opts.DedupCacheSize = 1024
	}
	settled, _ := lru.New[string, struct{}](opts.DedupCacheSize)
	return &Handler{
		service:    service,
		settlement: settlement,
		locker:     opts.Locker,
		lockTTL:    opts.LockTTL,
		settled:    settled,
		log:        log.WithField("component", "payment_handler"),
	}
}

// RegisterPublicRoutes mounts the routes providers and browsers reach
// without a token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.GET("/gateways", h.ListGateways)
		payments.GET("/success", h.Success)
		payments.GET("/cancel", h.Cancel)
		payments.POST("/webhook", h.Webhook)
	}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	payments := rg.Group("/payments")
	{
		payments.POST("/links", h.CreateLink)
		payments.GET("/sessions/:id/status", h.SessionStatus)
		payments.GET("/orders/:type/:id/history", h.History)
	}
}

// ListGateways godoc
// @Summary List payment gateways
// @Tags payments
// @Produce json
// @Success 200 {object} GatewaysResponse
// @Router /payments/gateways [get]
func (h *Handler) ListGateways(c *gin.Context) {
	reg := h.service.Gateways()
	response.Success(c, http.StatusOK, GatewaysResponse{
		Active:    reg.ActiveName(),
		Available: reg.Available(),
		Source:    reg.Source(),
	})
}

// CreateLink godoc
// @Summary Create a payment link for an order
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLinkRequest true "Order and amount"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /payments/links [post]
func (h *Handler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", err.Error())
		return
	}
	ref, err := domain.ParseOrderRef(req.OrderType, req.OrderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	userID := c.GetInt64("user_id")
	if isAdmin(c) {
		userID = 0
	}
	res, err := h.service.CreatePaymentLink(c.Request.Context(), CreateLinkInput{
		UserID:      userID,
		Order:       ref,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Gateway:     req.Gateway,
		Snapshot:    req.snapshot(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, CreateLinkResponse{
		SessionID:   res.Session.ID,
		PaymentLink: res.PaymentLink,
		Gateway:     res.Session.Gateway,
		Amount:      res.Session.Amount,
		Currency:    res.Session.Currency,
		ExpiresAt:   res.Session.ExpiresAt,
	})
}

// SessionStatus godoc
// @Summary Validate a payment session and settle it when paid
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} SessionStatusResponse
// @Failure 404 {object} map[string]any
// @Router /payments/sessions/{id}/status [get]
func (h *Handler) SessionStatus(c *gin.Context) {
	sessionID := c.Param("id")
	stored, err := h.service.Stored(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !isAdmin(c) && stored.Session.UserID != c.GetInt64("user_id") {
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
		return
	}

	out, err := h.reconcile(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// History godoc
// @Summary Payment sessions and transactions of an order
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param type path string true "subscription or cart"
// @Param id path int true "Order ID"
// @Success 200 {object} History
// @Router /payments/orders/{type}/{id}/history [get]
func (h *Handler) History(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid order id")
		return
	}
	ref, err := domain.ParseOrderRef(c.Param("type"), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !isAdmin(c) {
		owner, err := h.service.OrderOwner(c.Request.Context(), ref)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if owner != c.GetInt64("user_id") {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
			return
		}
	}

	hist, err := h.service.History(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, hist)
}

// Success godoc
// @Summary Provider success redirect
// @Tags payments
// @Produce json
// @Param order_type query string true "subscription or cart"
// @Param order_id query int true "Order ID"
// @Param session_id query string false "Gateway session ID"
// @Success 200 {object} SessionStatusResponse
// @Router /payments/success [get]
func (h *Handler) Success(c *gin.Context) {
	var q redirectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid redirect parameters", err.Error())
		return
	}
	ref, err := domain.ParseOrderRef(q.OrderType, q.OrderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	session, err := h.service.SessionForCallback(c.Request.Context(), ref, q.sessionID())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out, err := h.reconcile(c.Request.Context(), session.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, out)
}

// Cancel godoc
// @Summary Provider cancel redirect
// @Tags payments
// @Produce json
// @Param order_type query string true "subscription or cart"
// @Param order_id query int true "Order ID"
// @Param cancel_token query string true "Token issued with the payment link"
// @Success 200 {object} SessionStatusResponse
// @Failure 403 {object} map[string]any
// @Router /payments/cancel [get]
func (h *Handler) Cancel(c *gin.Context) {
	var q redirectQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid redirect parameters", err.Error())
		return
	}
	ref, err := domain.ParseOrderRef(q.OrderType, q.OrderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	session, err := h.service.CancelPayment(c.Request.Context(), ref, q.CancelToken)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := statusResponse(session)
	out.Message = "payment cancelled"
	response.Success(c, http.StatusOK, out)
}

// Webhook godoc
// @Summary Provider payment notification
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /payments/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	sessionID := webhookSessionID(c)
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "MISSING_IDENTIFIER", "Missing payment identifier")
		return
	}
	log := h.log.WithField("session_id", sessionID)

	if h.settled.Contains(sessionID) {
		c.JSON(http.StatusOK, gin.H{"received": true, "status": domain.SessionPaid, "duplicate": true})
		return
	}

	out, err := h.reconcile(c.Request.Context(), sessionID)
	if err != nil {
		log.WithError(err).Warn("webhook not processed")
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "processed": true, "status": out.Status})
}

// reconcile validates the session with its gateway and settles it when the
// gateway confirms payment. Only one instance works a session at a time; a
// caller that loses the lock gets the stored state.
func (h *Handler) reconcile(ctx context.Context, sessionID string) (*SessionStatusResponse, error) {
	log := h.log.WithField("session_id", sessionID)

	release, ok, err := h.locker.Acquire(ctx, lock.SessionKey(sessionID), h.lockTTL)
	if err != nil {
		log.WithError(err).Warn("session lock unavailable, continuing without it")
		release, ok = func() {}, true
	}
	if !ok {
		stored, err := h.service.Stored(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return statusResponse(stored.Session), nil
	}
	defer release()

	res, err := h.service.ValidatePayment(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := statusResponse(res.Session)
	if !res.Validation.Valid || res.Session.Status != domain.SessionPaid {
		return out, nil
	}

	settled, err := h.settlement.Settle(ctx, res.Session, res.Validation)
	if err != nil {
		log.WithFields(logrus.Fields{
			"order_type": res.Session.ModelType,
			"order_id":   res.Session.ModelID,
		}).WithError(err).Error("settlement failed")
		return nil, ErrSettlementFailed
	}
	h.settled.Add(sessionID, struct{}{})

	out.AlreadySettled = settled.AlreadySettled
	if settled.Transaction != nil {
		out.TransactionID = settled.Transaction.ID
	}
	out.ItemsCreated = len(settled.Items)
	return out, nil
}

func statusResponse(s *domain.PaymentSession) *SessionStatusResponse {
	return &SessionStatusResponse{
		SessionID: s.ID,
		OrderType: s.ModelType,
		OrderID:   s.ModelID,
		Gateway:   s.Gateway,
		Status:    s.Status,
		PaidAt:    s.PaidAt,
	}
}

// webhookSessionID reads the first known identifier from a JSON body, then
// from the query string.
func webhookSessionID(c *gin.Context) string {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err == nil {
		for _, key := range webhookIDKeys {
			if id := identifierString(body[key]); id != "" {
				return id
			}
		}
	}
	for _, key := range webhookIDKeys {
		if id := strings.TrimSpace(c.Query(key)); id != "" {
			return id
		}
	}
	return ""
}

func identifierString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == "admin"
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var providerErr *gateway.ProviderError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Payment session not found")
	case errors.Is(err, ErrOrderNotFound):
		response.Error(c, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, ErrForbidden):
		response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, ErrInvalidCancelToken):
		response.Error(c, http.StatusForbidden, "INVALID_CANCEL_TOKEN", "Cancel link is not valid")
	case errors.Is(err, ErrOrderNotPayable):
		response.Error(c, http.StatusConflict, "ORDER_NOT_PAYABLE", "Order is not awaiting payment")
	case errors.Is(err, ErrInvalidSnapshot),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidOrderRef):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, gateway.ErrNoActiveGateway),
		errors.Is(err, gateway.ErrGatewayNotLoaded),
		errors.Is(err, gateway.ErrUnknownGateway),
		errors.Is(err, gateway.ErrMissingCredentials):
		h.log.WithError(err).Error("payment gateway unavailable")
		response.Error(c, http.StatusServiceUnavailable, "GATEWAY_UNAVAILABLE", "Payment gateway is not available")
	case errors.As(err, &providerErr):
		response.Error(c, http.StatusBadGateway, "GATEWAY_ERROR", "Payment provider request failed")
	case errors.Is(err, ErrSettlementFailed):
		response.Error(c, http.StatusInternalServerError, "PAYMENT_PROCESSING_FAILED", ErrSettlementFailed.Error())
	default:
		h.log.WithError(err).Error("payment request failed")
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
