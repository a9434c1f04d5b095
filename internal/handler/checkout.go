// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/service"
	"example.com/storefront/pkg/logger"
)

// CheckoutHandler — обработчик оформления заказа.
type CheckoutHandler struct {
	checkout service.CheckoutService
}

// NewCheckoutHandler создаёт обработчик оформления заказа.
func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// === Request/Response DTOs ===

// CheckoutRequest — запрос на оформление заказа.
// Цены клиент не присылает: корзина — только идентификаторы и количества,
// стоимость считается по каталогу на сервере.
type CheckoutRequest struct {
	CustomerName  string `json:"customer_name" binding:"required,min=1"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	CustomerPhone string `json:"customer_phone"`
	AddressLine   string `json:"address_line" binding:"required,min=1"`
	City          string `json:"city" binding:"required,min=1"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`

	Items []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CheckoutItemRequest — позиция корзины в запросе.
type CheckoutItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,min=1"`
}

// CheckoutResponse — ответ на оформление заказа.
type CheckoutResponse struct {
	OrderNumber string `json:"order_number"`
	RedirectURL string `json:"redirect_url"`
}

// === Handlers ===

// Checkout оформляет заказ и создаёт сессию оплаты.
// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на оформление заказа")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	items := make([]service.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	svcReq := service.CheckoutRequest{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		AddressLine:   req.AddressLine,
		City:          req.City,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		Items:         items,
	}

	// Авторизованный покупатель привязывает заказ к себе, гость — нет
	if customerID := middleware.CustomerID(c); customerID != "" {
		svcReq.CustomerID = &customerID
	}

	result, err := h.checkout.Checkout(ctx, svcReq)
	if err != nil {
		HandleDomainError(c, err, "Checkout")
		return
	}

	log.Info().
		Str("order_number", result.OrderNumber).
		Int("items_count", len(items)).
		Msg("Заказ оформлен")

	c.JSON(http.StatusCreated, CheckoutResponse{
		OrderNumber: result.OrderNumber,
		RedirectURL: result.RedirectURL,
	})
}
