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

// OrderHandler — обработчик просмотра заказов и возврата с оплаты.
type OrderHandler struct {
	checkout  service.CheckoutService
	reconcile service.ReconcileService
}

// NewOrderHandler создаёт обработчик заказов.
func NewOrderHandler(checkout service.CheckoutService, reconcile service.ReconcileService) *OrderHandler {
	return &OrderHandler{checkout: checkout, reconcile: reconcile}
}

// === Response DTOs ===

// OrderResponse — заказ в ответе API.
type OrderResponse struct {
	Number         string              `json:"number"`
	CustomerName   string              `json:"customer_name"`
	CustomerEmail  string              `json:"customer_email"`
	AddressLine    string              `json:"address_line"`
	City           string              `json:"city"`
	PostalCode     string              `json:"postal_code,omitempty"`
	Country        string              `json:"country,omitempty"`
	Lines          []OrderLineResponse `json:"lines"`
	Subtotal       int64               `json:"subtotal"`
	ShippingFee    int64               `json:"shipping_fee"`
	Tax            int64               `json:"tax"`
	Total          int64               `json:"total"`
	Currency       string              `json:"currency"`
	PaymentStatus  string              `json:"payment_status"`
	OrderStatus    string              `json:"order_status"`
	TrackingNumber *string             `json:"tracking_number,omitempty"`
	TrackingURL    *string             `json:"tracking_url,omitempty"`
	CreatedAt      int64               `json:"created_at"`
	UpdatedAt      int64               `json:"updated_at"`
}

// OrderLineResponse — позиция заказа в ответе.
type OrderLineResponse struct {
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int32  `json:"quantity"`
	LineTotal    int64  `json:"line_total"`
}

// orderToResponse преобразует доменный заказ в response DTO.
func orderToResponse(o *domain.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = OrderLineResponse{
			ProductID:    l.ProductID,
			ProductName:  l.ProductName,
			ProductImage: l.ProductImage,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineTotal:    l.LineTotal,
		}
	}

	return OrderResponse{
		Number:         o.Number,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		AddressLine:    o.AddressLine,
		City:           o.City,
		PostalCode:     o.PostalCode,
		Country:        o.Country,
		Lines:          lines,
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		Tax:            o.Tax,
		Total:          o.Total,
		Currency:       o.Currency,
		PaymentStatus:  string(o.PaymentStatus),
		OrderStatus:    string(o.OrderStatus),
		TrackingNumber: o.TrackingNumber,
		TrackingURL:    o.TrackingURL,
		CreatedAt:      o.CreatedAt.Unix(),
		UpdatedAt:      o.UpdatedAt.Unix(),
	}
}

// canView проверяет, что заказ принадлежит запрашивающему.
// Гостевые заказы доступны по номеру (номер непредсказуем), заказы
// покупателей — только владельцу.
func canView(c *gin.Context, order *domain.Order) bool {
	if order.CustomerID == nil {
		return true
	}
	return middleware.CustomerID(c) == *order.CustomerID
}

// === Handlers ===

// GetOrder возвращает заказ по номеру.
// GET /api/v1/orders/:number
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()

	order, err := h.checkout.GetOrder(ctx, c.Param("number"))
	if err != nil {
		HandleDomainError(c, err, "GetOrder")
		return
	}

	// Чужой заказ не раскрываем — отвечаем как на несуществующий
	if !canView(c, order) {
		HandleDomainError(c, domain.ErrOrderNotFound, "GetOrder")
		return
	}

	c.JSON(http.StatusOK, orderToResponse(order))
}

// ConfirmReturn обрабатывает возврат покупателя со страницы оплаты.
// Параметрам редиректа не доверяем: сервис сам спрашивает шлюз о статусе
// сессии и применяет переход только при подтверждённой оплате.
// PATCH /api/v1/orders/:number
func (h *OrderHandler) ConfirmReturn(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	number := c.Param("number")

	order, err := h.reconcile.ConfirmReturn(ctx, number)
	if err != nil {
		HandleDomainError(c, err, "ConfirmReturn")
		return
	}

	if !canView(c, order) {
		HandleDomainError(c, domain.ErrOrderNotFound, "ConfirmReturn")
		return
	}

	log.Debug().
		Str("order_number", number).
		Str("payment_status", string(order.PaymentStatus)).
		Msg("Возврат со страницы оплаты обработан")

	c.JSON(http.StatusOK, orderToResponse(order))
}
