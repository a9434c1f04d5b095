package domain

import "time"

// NotificationType — тип уведомления покупателя.
type NotificationType string

const (
	NotificationOrderConfirmed NotificationType = "order_confirmed"
	NotificationPaymentFailed  NotificationType = "payment_failed"
	NotificationOrderShipped   NotificationType = "order_shipped"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderCancelled NotificationType = "order_cancelled"
)

// Notification — внутреннее уведомление покупателя.
type Notification struct {
	ID         string
	CustomerID string
	Type       NotificationType
	Title      string
	Message    string
	Link       string
	Read       bool
	OrderID    *string
	CreatedAt  time.Time
}

// EmailEvent — payload письма, публикуемый через outbox в Kafka.
// Email-воркер рендерит шаблон и отправляет письмо.
type EmailEvent struct {
	Template    string            `json:"template"`     // Имя шаблона (совпадает с NotificationType)
	To          string            `json:"to"`           // Адрес получателя
	OrderNumber string            `json:"order_number"` // Для корреляции и темы письма
	Data        map[string]string `json:"data"`         // Подстановки шаблона
}
