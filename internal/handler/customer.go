// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/service"
	"example.com/storefront/pkg/logger"
)

// CustomerHandler — личный кабинет: заказы, уведомления, баллы.
type CustomerHandler struct {
	checkout      service.CheckoutService
	notifications service.NotificationService
	rewards       service.RewardsService
}

// NewCustomerHandler создаёт обработчик личного кабинета.
func NewCustomerHandler(
	checkout service.CheckoutService,
	notifications service.NotificationService,
	rewards service.RewardsService,
) *CustomerHandler {
	return &CustomerHandler{
		checkout:      checkout,
		notifications: notifications,
		rewards:       rewards,
	}
}

// === Response DTOs ===

// ListOrdersResponse — список заказов покупателя.
type ListOrdersResponse struct {
	Orders     []OrderResponse    `json:"orders"`
	Pagination PaginationResponse `json:"pagination"`
}

// PaginationResponse — информация о пагинации.
type PaginationResponse struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
}

// NotificationResponse — уведомление в ответе.
type NotificationResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Link      string  `json:"link,omitempty"`
	Read      bool    `json:"read"`
	OrderID   *string `json:"order_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// ListNotificationsResponse — уведомления и число непрочитанных.
type ListNotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int64                  `json:"unread_count"`
}

// RewardsEntryResponse — запись журнала баллов.
type RewardsEntryResponse struct {
	Points      int64  `json:"points"`
	Type        string `json:"type"`
	OrderNumber string `json:"order_number,omitempty"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// RewardsResponse — баланс и журнал баллов покупателя.
type RewardsResponse struct {
	Balance        int64                  `json:"balance"`
	LifetimeEarned int64                  `json:"lifetime_earned"`
	History        []RewardsEntryResponse `json:"history"`
}

// pageParams разбирает параметры пагинации из query.
func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if pageSizeStr := c.Query("page_size"); pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}

// === Handlers ===

// ListOrders возвращает заказы текущего покупателя.
// GET /api/v1/customers/me/orders?page=1&page_size=20
func (h *CustomerHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := middleware.CustomerID(c)
	page, pageSize := pageParams(c)

	orders, total, err := h.checkout.ListOrders(ctx, customerID, (page-1)*pageSize, pageSize)
	if err != nil {
		HandleDomainError(c, err, "ListOrders")
		return
	}

	resp := ListOrdersResponse{
		Orders: make([]OrderResponse, len(orders)),
		Pagination: PaginationResponse{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
		},
	}
	for i, o := range orders {
		resp.Orders[i] = orderToResponse(o)
	}

	c.JSON(http.StatusOK, resp)
}

// ListNotifications возвращает уведомления покупателя.
// GET /api/v1/customers/me/notifications
func (h *CustomerHandler) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := middleware.CustomerID(c)
	page, pageSize := pageParams(c)

	items, unread, err := h.notifications.List(ctx, customerID, (page-1)*pageSize, pageSize)
	if err != nil {
		HandleDomainError(c, err, "ListNotifications")
		return
	}

	resp := ListNotificationsResponse{
		Notifications: make([]NotificationResponse, len(items)),
		UnreadCount:   unread,
	}
	for i, n := range items {
		resp.Notifications[i] = notificationToResponse(n)
	}

	c.JSON(http.StatusOK, resp)
}

// MarkNotificationRead помечает уведомление прочитанным.
// POST /api/v1/customers/me/notifications/:id/read
func (h *CustomerHandler) MarkNotificationRead(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := middleware.CustomerID(c)

	if err := h.notifications.MarkRead(ctx, customerID, c.Param("id")); err != nil {
		HandleDomainError(c, err, "MarkNotificationRead")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
// POST /api/v1/customers/me/notifications/read-all
func (h *CustomerHandler) MarkAllNotificationsRead(c *gin.Context) {
	ctx := c.Request.Context()
	customerID := middleware.CustomerID(c)

	if err := h.notifications.MarkAllRead(ctx, customerID); err != nil {
		HandleDomainError(c, err, "MarkAllNotificationsRead")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetRewards возвращает баланс и журнал баллов покупателя.
// GET /api/v1/customers/me/rewards
func (h *CustomerHandler) GetRewards(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	customerID := middleware.CustomerID(c)
	page, pageSize := pageParams(c)

	balance, err := h.rewards.Balance(ctx, customerID)
	if err != nil {
		HandleDomainError(c, err, "GetRewards")
		return
	}

	history, _, err := h.rewards.History(ctx, customerID, (page-1)*pageSize, pageSize)
	if err != nil {
		HandleDomainError(c, err, "GetRewards")
		return
	}

	resp := RewardsResponse{
		Balance:        balance.Balance,
		LifetimeEarned: balance.LifetimeEarned,
		History:        make([]RewardsEntryResponse, len(history)),
	}
	for i, e := range history {
		resp.History[i] = rewardsEntryToResponse(e)
	}

	log.Debug().
		Str("customer_id", customerID).
		Int64("balance", balance.Balance).
		Msg("Запрошен баланс баллов")

	c.JSON(http.StatusOK, resp)
}

func notificationToResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		Read:      n.Read,
		OrderID:   n.OrderID,
		CreatedAt: n.CreatedAt.Unix(),
	}
}

func rewardsEntryToResponse(e *domain.RewardsLedgerEntry) RewardsEntryResponse {
	resp := RewardsEntryResponse{
		Points:      e.Points,
		Type:        string(e.Type),
		OrderNumber: e.OrderNumber,
		CreatedAt:   e.CreatedAt.Unix(),
	}
	if e.ExpiresAt != nil {
		ts := e.ExpiresAt.Unix()
		resp.ExpiresAt = &ts
	}
	return resp
}
