package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/marketplace-service/internal/domain"
	"github.com/cloud-wave-best-zizon/marketplace-service/internal/service"
	"github.com/cloud-wave-best-zizon/marketplace-service/pkg/middleware"
)

type OrderHandler struct {
	responder
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger, devMode bool) *OrderHandler {
	return &OrderHandler{
		responder:    responder{logger: logger, devMode: devMode},
		orderService: orderService,
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Info("Invalid order request",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		h.bindError(c, err)
		return
	}

	// The response is the only place the OTP is ever shown.
	order, err := h.orderService.CreateOrder(c.Request.Context(), callerID, req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), callerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListByBuyer(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListByBuyer(c.Request.Context(), callerID, c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListBySeller(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListBySeller(c.Request.Context(), callerID, c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var patch domain.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.bindError(c, err)
		return
	}

	order, err := h.orderService.UpdateOrder(c.Request.Context(), callerID, c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// UpdateLineStatus handles PATCH /orders/:id/items/:itemId where itemId is
// the order line id.
func (h *OrderHandler) UpdateLineStatus(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	var req domain.UpdateLineStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	order, err := h.orderService.UpdateLineStatus(c.Request.Context(), callerID, c.Param("id"), c.Param("itemId"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	callerID, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(c.Request.Context(), callerID, c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
