package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/storefront/internal/domain"
)

// NotificationRepository определяет доступ к внутренним уведомлениям.
type NotificationRepository interface {
	// Create сохраняет уведомление покупателя.
	Create(ctx context.Context, notification *domain.Notification) error

	// ListByCustomerID возвращает уведомления покупателя с пагинацией,
	// новые первыми. Возвращает также число непрочитанных.
	ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error)

	// MarkRead помечает уведомление прочитанным.
	// Чужое или отсутствующее уведомление — ErrNotificationNotFound.
	MarkRead(ctx context.Context, customerID, notificationID string) error

	// MarkAllRead помечает все уведомления покупателя прочитанными.
	MarkAllRead(ctx context.Context, customerID string) error
}

// NotificationModel — GORM модель для таблицы notifications.
type NotificationModel struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID string    `gorm:"column:customer_id;type:varchar(36);not null;index"`
	Type       string    `gorm:"column:type;type:varchar(32);not null"`
	Title      string    `gorm:"column:title;type:varchar(255);not null"`
	Message    string    `gorm:"column:message;type:text;not null"`
	Link       string    `gorm:"column:link;type:varchar(500)"`
	IsRead     bool      `gorm:"column:is_read;not null;index"`
	OrderID    *string   `gorm:"column:order_id;type:varchar(36)"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (NotificationModel) TableName() string {
	return "notifications"
}

// toDomain конвертирует GORM модель уведомления в доменную сущность.
func (m *NotificationModel) toDomain() *domain.Notification {
	return &domain.Notification{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Type:       domain.NotificationType(m.Type),
		Title:      m.Title,
		Message:    m.Message,
		Link:       m.Link,
		Read:       m.IsRead,
		OrderID:    m.OrderID,
		CreatedAt:  m.CreatedAt,
	}
}

// notificationRepository — GORM реализация NotificationRepository.
type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository создаёт новый репозиторий уведомлений.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create сохраняет уведомление покупателя.
func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	model := &NotificationModel{
		ID:         n.ID,
		CustomerID: n.CustomerID,
		Type:       string(n.Type),
		Title:      n.Title,
		Message:    n.Message,
		Link:       n.Link,
		IsRead:     n.Read,
		OrderID:    n.OrderID,
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	n.CreatedAt = model.CreatedAt
	return nil
}

// ListByCustomerID возвращает уведомления покупателя с числом непрочитанных.
func (r *notificationRepository) ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error) {
	var models []NotificationModel
	var unreadCount int64

	if err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("customer_id = ? AND is_read = ?", customerID, false).
		Count(&unreadCount).Error; err != nil {
		return nil, 0, err
	}

	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	notifications := make([]*domain.Notification, len(models))
	for i := range models {
		notifications[i] = models[i].toDomain()
	}

	return notifications, unreadCount, nil
}

// MarkRead помечает уведомление прочитанным.
// Условие на customer_id не даёт пометить чужое уведомление.
func (r *notificationRepository) MarkRead(ctx context.Context, customerID, notificationID string) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND customer_id = ?", notificationID, customerID).
		Update("is_read", true)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// Либо нет такого уведомления, либо оно уже прочитано — проверяем
		var model NotificationModel
		err := r.db.WithContext(ctx).
			Where("id = ? AND customer_id = ?", notificationID, customerID).
			First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotificationNotFound
		}
		return err
	}

	return nil
}

// MarkAllRead помечает все уведомления покупателя прочитанными.
func (r *notificationRepository) MarkAllRead(ctx context.Context, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("customer_id = ? AND is_read = ?", customerID, false).
		Update("is_read", true).Error
}
