package service

import (
	"context"
	"fmt"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/logger"
)

// trackingPlaceholder подставляется при отправке без трек-номера.
const trackingPlaceholder = "уточняется"

// TransitionRequest — запрос администратора на смену статуса заказа.
type TransitionRequest struct {
	OrderID        string
	TargetStatus   domain.OrderStatus
	TrackingNumber string
	TrackingURL    string
	AdminNotes     string
}

// FulfillmentService ведёт заказ по статусам фулфилмента.
type FulfillmentService interface {
	// Transition переводит заказ в целевой статус. Недопустимый переход —
	// ErrInvalidTransition; проигрыш гонки другому администратору — тоже,
	// с актуальным статусом в логе. На shipped/delivered/cancelled
	// уходит уведомление и письмо.
	Transition(ctx context.Context, req TransitionRequest) (*domain.Order, error)
}

// transitionNotifications — события, о которых сообщаем покупателю.
var transitionNotifications = map[domain.OrderStatus]domain.NotificationType{
	domain.OrderStatusShipped:   domain.NotificationOrderShipped,
	domain.OrderStatusDelivered: domain.NotificationOrderDelivered,
	domain.OrderStatusCancelled: domain.NotificationOrderCancelled,
}

// fulfillmentService — реализация FulfillmentService.
type fulfillmentService struct {
	orders        repository.OrderRepository
	notifications NotificationService
}

// NewFulfillmentService создаёт сервис фулфилмента.
func NewFulfillmentService(
	orders repository.OrderRepository,
	notifications NotificationService,
) FulfillmentService {
	return &fulfillmentService{
		orders:        orders,
		notifications: notifications,
	}
}

// Transition переводит заказ в целевой статус.
func (s *fulfillmentService) Transition(ctx context.Context, req TransitionRequest) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if !order.OrderStatus.CanTransitionTo(req.TargetStatus) {
		log.Warn().
			Str("order_id", order.ID).
			Str("from", string(order.OrderStatus)).
			Str("to", string(req.TargetStatus)).
			Msg("недопустимый переход статуса заказа")
		return nil, domain.ErrInvalidTransition
	}

	tracking := &domain.TrackingInfo{
		Number:     req.TrackingNumber,
		URL:        req.TrackingURL,
		AdminNotes: req.AdminNotes,
	}

	if req.TargetStatus == domain.OrderStatusShipped && tracking.Number == "" {
		// Отправка без трек-номера допустима, но явно помечена
		log.Warn().
			Str("order_id", order.ID).
			Msg("заказ отправлен без трек-номера")
		tracking.Number = trackingPlaceholder
	}

	// Условный UPDATE: переход применяется, только если статус
	// всё ещё тот, от которого мы проверяли допустимость
	applied, err := s.orders.UpdateOrderStatus(ctx, order.ID, order.OrderStatus, req.TargetStatus, tracking)
	if err != nil {
		return nil, fmt.Errorf("смена статуса заказа: %w", err)
	}

	if !applied {
		log.Warn().
			Str("order_id", order.ID).
			Str("expected_from", string(order.OrderStatus)).
			Str("to", string(req.TargetStatus)).
			Msg("статус заказа изменён конкурентно, переход не применён")
		return nil, domain.ErrInvalidTransition
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Str("from", string(order.OrderStatus)).
		Str("to", string(req.TargetStatus)).
		Msg("Статус заказа изменён")

	updated, err := s.orders.GetByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	if event, ok := transitionNotifications[req.TargetStatus]; ok {
		s.notifications.Dispatch(ctx, updated, event)
	}

	return updated, nil
}
