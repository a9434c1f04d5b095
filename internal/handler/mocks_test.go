// Package handler — моки сервисов для unit тестов обработчиков.
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/service"
)

// MockCheckoutService — мок для CheckoutService.
type MockCheckoutService struct {
	CheckoutFunc   func(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
	GetOrderFunc   func(ctx context.Context, number string) (*domain.Order, error)
	ListOrdersFunc func(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error)
}

func (m *MockCheckoutService) Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error) {
	if m.CheckoutFunc != nil {
		return m.CheckoutFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockCheckoutService) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, number)
	}
	return nil, domain.ErrOrderNotFound
}

func (m *MockCheckoutService) ListOrders(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	if m.ListOrdersFunc != nil {
		return m.ListOrdersFunc(ctx, customerID, offset, limit)
	}
	return nil, 0, nil
}

// MockReconcileService — мок для ReconcileService.
type MockReconcileService struct {
	HandleEventFunc   func(ctx context.Context, event *gateway.Event) error
	ConfirmReturnFunc func(ctx context.Context, orderNumber string) (*domain.Order, error)
}

func (m *MockReconcileService) HandleEvent(ctx context.Context, event *gateway.Event) error {
	if m.HandleEventFunc != nil {
		return m.HandleEventFunc(ctx, event)
	}
	return nil
}

func (m *MockReconcileService) ConfirmReturn(ctx context.Context, orderNumber string) (*domain.Order, error) {
	if m.ConfirmReturnFunc != nil {
		return m.ConfirmReturnFunc(ctx, orderNumber)
	}
	return nil, domain.ErrOrderNotFound
}

// MockFulfillmentService — мок для FulfillmentService.
type MockFulfillmentService struct {
	TransitionFunc func(ctx context.Context, req service.TransitionRequest) (*domain.Order, error)
}

func (m *MockFulfillmentService) Transition(ctx context.Context, req service.TransitionRequest) (*domain.Order, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, req)
	}
	return nil, domain.ErrOrderNotFound
}

// MockNotificationService — мок для NotificationService.
type MockNotificationService struct {
	DispatchFunc    func(ctx context.Context, order *domain.Order, event domain.NotificationType)
	ListFunc        func(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error)
	MarkReadFunc    func(ctx context.Context, customerID, notificationID string) error
	MarkAllReadFunc func(ctx context.Context, customerID string) error
}

func (m *MockNotificationService) Dispatch(ctx context.Context, order *domain.Order, event domain.NotificationType) {
	if m.DispatchFunc != nil {
		m.DispatchFunc(ctx, order, event)
	}
}

func (m *MockNotificationService) List(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, customerID, offset, limit)
	}
	return nil, 0, nil
}

func (m *MockNotificationService) MarkRead(ctx context.Context, customerID, notificationID string) error {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, customerID, notificationID)
	}
	return nil
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, customerID string) error {
	if m.MarkAllReadFunc != nil {
		return m.MarkAllReadFunc(ctx, customerID)
	}
	return nil
}

// MockRewardsService — мок для RewardsService.
type MockRewardsService struct {
	AwardFunc   func(ctx context.Context, order *domain.Order) error
	BalanceFunc func(ctx context.Context, customerID string) (*domain.RewardsBalance, error)
	HistoryFunc func(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error)
}

func (m *MockRewardsService) Award(ctx context.Context, order *domain.Order) error {
	if m.AwardFunc != nil {
		return m.AwardFunc(ctx, order)
	}
	return nil
}

func (m *MockRewardsService) Balance(ctx context.Context, customerID string) (*domain.RewardsBalance, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, customerID)
	}
	return &domain.RewardsBalance{CustomerID: customerID}, nil
}

func (m *MockRewardsService) History(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, customerID, offset, limit)
	}
	return nil, 0, nil
}

// identityMiddleware имитирует JWT middleware: кладёт customer_id в контекст.
func identityMiddleware(customerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if customerID != "" {
			c.Set(middleware.ContextCustomerID, customerID)
		}
		c.Next()
	}
}
