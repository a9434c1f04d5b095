package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/kafka"
	"example.com/storefront/pkg/logger"
	"example.com/storefront/pkg/outbox"
)

// NotificationService рассылает уведомления о событиях заказа.
// Все операции best-effort: любая ошибка логируется и гасится,
// переход статуса заказа из-за уведомлений не откатывается.
type NotificationService interface {
	// Dispatch пишет внутреннее уведомление (для авторизованного
	// покупателя) и ставит письмо в outbox. Ошибок не возвращает.
	Dispatch(ctx context.Context, order *domain.Order, event domain.NotificationType)

	// List возвращает уведомления покупателя и число непрочитанных.
	List(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error)

	// MarkRead помечает уведомление прочитанным.
	MarkRead(ctx context.Context, customerID, notificationID string) error

	// MarkAllRead помечает все уведомления покупателя прочитанными.
	MarkAllRead(ctx context.Context, customerID string) error
}

// notificationTemplate — заголовок и текст уведомления по типу события.
type notificationTemplate struct {
	title   string
	message string // fmt-шаблон с номером заказа
}

var notificationTemplates = map[domain.NotificationType]notificationTemplate{
	domain.NotificationOrderConfirmed: {
		title:   "Заказ оплачен",
		message: "Оплата заказа %s подтверждена, мы начали его собирать.",
	},
	domain.NotificationPaymentFailed: {
		title:   "Оплата не прошла",
		message: "Оплата заказа %s отклонена. Попробуйте оформить заказ ещё раз.",
	},
	domain.NotificationOrderShipped: {
		title:   "Заказ отправлен",
		message: "Заказ %s передан в доставку.",
	},
	domain.NotificationOrderDelivered: {
		title:   "Заказ доставлен",
		message: "Заказ %s доставлен. Спасибо за покупку!",
	},
	domain.NotificationOrderCancelled: {
		title:   "Заказ отменён",
		message: "Заказ %s отменён.",
	},
}

// notificationService — реализация NotificationService.
type notificationService struct {
	notifications repository.NotificationRepository
	outbox        outbox.OutboxRepository
}

// NewNotificationService создаёт диспетчер уведомлений.
func NewNotificationService(
	notifications repository.NotificationRepository,
	outboxRepo outbox.OutboxRepository,
) NotificationService {
	return &notificationService{
		notifications: notifications,
		outbox:        outboxRepo,
	}
}

// Dispatch рассылает уведомление о событии заказа.
func (s *notificationService) Dispatch(ctx context.Context, order *domain.Order, event domain.NotificationType) {
	log := logger.FromContext(ctx)

	tmpl, ok := notificationTemplates[event]
	if !ok {
		log.Error().Str("event", string(event)).Msg("неизвестный тип уведомления")
		return
	}

	// Внутреннее уведомление — только для авторизованного покупателя
	if order.CustomerID != nil {
		notification := &domain.Notification{
			ID:         uuid.New().String(),
			CustomerID: *order.CustomerID,
			Type:       event,
			Title:      tmpl.title,
			Message:    fmt.Sprintf(tmpl.message, order.Number),
			Link:       "/orders/" + order.Number,
			OrderID:    &order.ID,
		}

		if err := s.notifications.Create(ctx, notification); err != nil {
			log.Error().Err(err).
				Str("order_id", order.ID).
				Str("event", string(event)).
				Msg("не удалось сохранить уведомление")
		}
	}

	// Письмо идёт через outbox: ack вебхука не ждёт ни Kafka, ни SMTP
	if err := s.enqueueEmail(ctx, order, event); err != nil {
		log.Error().Err(err).
			Str("order_id", order.ID).
			Str("event", string(event)).
			Msg("не удалось поставить письмо в outbox")
	}
}

// enqueueEmail пишет письмо в outbox для публикации в Kafka.
func (s *notificationService) enqueueEmail(ctx context.Context, order *domain.Order, event domain.NotificationType) error {
	payload, err := json.Marshal(domain.EmailEvent{
		Template:    string(event),
		To:          order.CustomerEmail,
		OrderNumber: order.Number,
		Data: map[string]string{
			"customer_name":   order.CustomerName,
			"order_number":    order.Number,
			"total":           fmt.Sprintf("%d.%02d", order.Total/100, order.Total%100),
			"currency":        order.Currency,
			"tracking_number": stringValue(order.TrackingNumber),
			"tracking_url":    stringValue(order.TrackingURL),
		},
	})
	if err != nil {
		return err
	}

	return s.outbox.Create(ctx, &outbox.Outbox{
		ID:            uuid.New().String(),
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "email." + string(event),
		Topic:         kafka.TopicEmail,
		MessageKey:    order.Number,
		Payload:       payload,
		Headers: map[string]string{
			"trace_id":       logger.TraceIDFromContext(ctx),
			"correlation_id": logger.CorrelationIDFromContext(ctx),
		},
		CreatedAt: time.Now(),
	})
}

// List возвращает уведомления покупателя.
func (s *notificationService) List(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error) {
	return s.notifications.ListByCustomerID(ctx, customerID, offset, limit)
}

// MarkRead помечает уведомление прочитанным.
func (s *notificationService) MarkRead(ctx context.Context, customerID, notificationID string) error {
	return s.notifications.MarkRead(ctx, customerID, notificationID)
}

// MarkAllRead помечает все уведомления покупателя прочитанными.
func (s *notificationService) MarkAllRead(ctx context.Context, customerID string) error {
	return s.notifications.MarkAllRead(ctx, customerID)
}

// stringValue возвращает значение указателя или пустую строку.
func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
