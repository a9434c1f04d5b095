// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/service"
	"example.com/storefront/pkg/logger"
)

// AdminHandler — админка фулфилмента.
type AdminHandler struct {
	fulfillment service.FulfillmentService
}

// NewAdminHandler создаёт обработчик админки.
func NewAdminHandler(fulfillment service.FulfillmentService) *AdminHandler {
	return &AdminHandler{fulfillment: fulfillment}
}

// === Request DTOs ===

// TransitionOrderRequest — запрос на смену статуса заказа.
type TransitionOrderRequest struct {
	Status         string `json:"status" binding:"required"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	AdminNotes     string `json:"admin_notes"`
}

// === Handlers ===

// TransitionOrder переводит заказ в целевой статус фулфилмента.
// В отличие от вебхука здесь доверенный администратор — ошибки
// возвращаются подробные.
// PUT /api/v1/admin/orders/:id
func (h *AdminHandler) TransitionOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req TransitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на смену статуса")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	if !domain.ValidOrderStatus(req.Status) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Неизвестный статус: " + req.Status,
		})
		return
	}

	order, err := h.fulfillment.Transition(ctx, service.TransitionRequest{
		OrderID:        c.Param("id"),
		TargetStatus:   domain.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
		TrackingURL:    req.TrackingURL,
		AdminNotes:     req.AdminNotes,
	})
	if err != nil {
		HandleDomainError(c, err, "TransitionOrder")
		return
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Str("status", string(order.OrderStatus)).
		Str("admin_id", middleware.CustomerID(c)).
		Msg("Статус заказа изменён администратором")

	c.JSON(http.StatusOK, orderToResponse(order))
}
