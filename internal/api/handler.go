package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"fulfillment-service/internal/fulfillment"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error codes surfaced to clients. Every rejection names its taxonomy
// value; there is no generic failure response.
const (
	codeOrderNotFound       = "ORDER_NOT_FOUND"
	codeIllegalTransition   = "ILLEGAL_TRANSITION"
	codeNotVerified         = "SHIPMENT_NOT_VERIFIED"
	codeStatusConflict      = "STATUS_CONFLICT"
	codeStoreUnavailable    = "STORE_UNAVAILABLE"
	codeCountAlreadySet     = "DECLARED_COUNT_ALREADY_SET"
	codeUnitIndexOutOfRange = "UNIT_INDEX_OUT_OF_RANGE"
	codeUnknownSession      = "UNKNOWN_SCAN_SESSION"
)

// Handler contains HTTP handlers
type Handler struct {
	orderService *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(orderService *service.OrderService) *Handler {
	return &Handler{
		orderService: orderService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrderView)
		v1.POST("/orders/:id/tracking", h.enableTracking)
		v1.GET("/orders/:id/units", h.getUnitProgress)
		v1.GET("/orders/:id/units/:index/token", h.generateToken)
		v1.POST("/orders/:id/scans", h.submitScan)
		v1.POST("/orders/:id/transitions", h.requestTransition)
		v1.POST("/scan-sessions", h.openScanSession)
		v1.POST("/scan-sessions/:sid/scans", h.submitSessionScan)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type createOrderRequest struct {
	BuyerID string `json:"buyer_id" binding:"required"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req.BuyerID)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrderView(c *gin.Context) {
	view, err := h.orderService.GetOrderView(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

type enableTrackingRequest struct {
	DeclaredUnitCount int `json:"declared_unit_count" binding:"required,min=1"`
}

func (h *Handler) enableTracking(c *gin.Context) {
	var req enableTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.EnableUnitTracking(c.Request.Context(), c.Param("id"), req.DeclaredUnitCount)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) getUnitProgress(c *gin.Context) {
	progress, err := h.orderService.GetUnitProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}

func (h *Handler) generateToken(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unit index"})
		return
	}

	payload, err := h.orderService.GenerateUnitToken(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": c.Param("id"),
		"unit":     index,
		"payload":  payload,
	})
}

type submitScanRequest struct {
	Payload string `json:"payload" binding:"required"`
}

func (h *Handler) submitScan(c *gin.Context) {
	var req submitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orderService.SubmitScan(c.Request.Context(), c.Param("id"), req.Payload)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type openScanSessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	OrderID   string `json:"order_id" binding:"required"`
}

func (h *Handler) openScanSession(c *gin.Context) {
	var req openScanSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.orderService.OpenScanSession(c.Request.Context(), req.SessionID, req.OrderID); err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": req.SessionID,
		"order_id":   req.OrderID,
	})
}

func (h *Handler) submitSessionScan(c *gin.Context) {
	var req submitScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	orderID, err := h.orderService.ResolveScanSession(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	if orderID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": codeUnknownSession})
		return
	}

	resp, err := h.orderService.SubmitScan(c.Request.Context(), orderID, req.Payload)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type transitionRequest struct {
	Target string `json:"target" binding:"required"`
}

func (h *Handler) requestTransition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.orderService.RequestStatusTransition(c.Request.Context(), c.Param("id"), req.Target)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// renderError maps the error taxonomy to HTTP responses. Every rejection
// states why, with the fields the operator UI needs to guide the user.
func (h *Handler) renderError(c *gin.Context, err error) {
	var notVerified *fulfillment.ShipmentNotVerifiedError
	if errors.As(err, &notVerified) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     codeNotVerified,
			"order_id":  notVerified.OrderID,
			"remaining": notVerified.Remaining,
		})
		return
	}

	var illegal *fulfillment.IllegalTransitionError
	if errors.As(err, &illegal) {
		c.JSON(http.StatusConflict, gin.H{
			"error": codeIllegalTransition,
			"from":  illegal.From,
			"to":    illegal.To,
		})
		return
	}

	var unavailable *fulfillment.StoreUnavailableError
	if errors.As(err, &unavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": codeStoreUnavailable,
			"op":    unavailable.Op,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": codeOrderNotFound})
	case errors.Is(err, store.ErrDeclaredCountAlreadySet):
		c.JSON(http.StatusConflict, gin.H{"error": codeCountAlreadySet})
	case errors.Is(err, store.ErrStatusConflict):
		c.JSON(http.StatusConflict, gin.H{"error": codeStatusConflict})
	case errors.Is(err, service.ErrUnitIndexOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": codeUnitIndexOutOfRange})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
