// Package repository содержит реализацию доступа к данным витрины.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/storefront/internal/domain"
	"example.com/storefront/pkg/logger"
)

// maxNumberRetries — число повторов генерации номера заказа при коллизии.
const maxNumberRetries = 3

// OrderRepository определяет интерфейс для работы с заказами в БД.
type OrderRepository interface {
	// Create создаёт новый заказ с позициями в одной транзакции.
	// При коллизии номера заказа генерирует новый и повторяет вставку.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ по ID с загруженными позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByNumber возвращает заказ по человекочитаемому номеру.
	GetByNumber(ctx context.Context, number string) (*domain.Order, error)

	// GetByPaymentRef возвращает заказ по ссылке на checkout-сессию шлюза.
	GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error)

	// ListByCustomerID возвращает заказы покупателя с пагинацией.
	ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error)

	// SetPaymentRef привязывает checkout-сессию к заказу в статусе pending.
	SetPaymentRef(ctx context.Context, orderID, paymentRef string) error

	// MarkPaid условно переводит оплату pending -> paid и статус заказа
	// pending -> confirmed одним UPDATE. Возвращает applied=true, только
	// если именно этот вызов выполнил переход; false — переход уже
	// был применён конкурентным вызовом (или статус другой).
	MarkPaid(ctx context.Context, orderID string) (applied bool, err error)

	// MarkPaymentFailed условно переводит оплату pending -> failed.
	MarkPaymentFailed(ctx context.Context, orderID, reason string) (applied bool, err error)

	// MarkRefunded условно переводит оплату paid -> refunded.
	MarkRefunded(ctx context.Context, orderID string) (applied bool, err error)

	// UpdateOrderStatus условно обновляет операционный статус заказа:
	// UPDATE срабатывает, только если текущий статус равен from.
	// Возвращает applied=false при гонке или неожиданном статусе.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, tracking *domain.TrackingInfo) (applied bool, err error)
}

// OrderModel — GORM модель для таблицы orders.
// Отделена от доменной сущности для гибкости.
type OrderModel struct {
	ID         string  `gorm:"column:id;type:varchar(36);primaryKey"`
	Number     string  `gorm:"column:number;type:varchar(20);not null;uniqueIndex"`
	CustomerID *string `gorm:"column:customer_id;type:varchar(36);index"`

	CustomerName  string `gorm:"column:customer_name;type:varchar(255);not null"`
	CustomerEmail string `gorm:"column:customer_email;type:varchar(255);not null"`
	CustomerPhone string `gorm:"column:customer_phone;type:varchar(32)"`
	AddressLine   string `gorm:"column:address_line;type:varchar(500);not null"`
	City          string `gorm:"column:city;type:varchar(100);not null"`
	PostalCode    string `gorm:"column:postal_code;type:varchar(20)"`
	Country       string `gorm:"column:country;type:varchar(2)"`

	Subtotal    int64  `gorm:"column:subtotal;not null"`
	ShippingFee int64  `gorm:"column:shipping_fee;not null"`
	Tax         int64  `gorm:"column:tax;not null"`
	Total       int64  `gorm:"column:total;not null"`
	Currency    string `gorm:"column:currency;type:varchar(3);not null"`

	PaymentStatus string  `gorm:"column:payment_status;type:varchar(20);not null;index"`
	OrderStatus   string  `gorm:"column:order_status;type:varchar(20);not null;index"`
	PaymentRef    *string `gorm:"column:payment_ref;type:varchar(255);index"`
	FailureReason *string `gorm:"column:failure_reason;type:text"`

	TrackingNumber *string `gorm:"column:tracking_number;type:varchar(100)"`
	TrackingURL    *string `gorm:"column:tracking_url;type:varchar(500)"`
	AdminNotes     *string `gorm:"column:admin_notes;type:text"`

	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Lines     []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderLineModel — GORM модель для таблицы order_lines.
type OrderLineModel struct {
	ID           string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID      string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID    string    `gorm:"column:product_id;type:varchar(36);not null"`
	ProductName  string    `gorm:"column:product_name;type:varchar(255);not null"`
	ProductImage string    `gorm:"column:product_image;type:varchar(500)"`
	UnitPrice    int64     `gorm:"column:unit_price;not null"`
	Quantity     int32     `gorm:"column:quantity;not null"`
	LineTotal    int64     `gorm:"column:line_total;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// toDomain конвертирует GORM модель заказа в доменную сущность.
func (m *OrderModel) toDomain() *domain.Order {
	order := &domain.Order{
		ID:             m.ID,
		Number:         m.Number,
		CustomerID:     m.CustomerID,
		CustomerName:   m.CustomerName,
		CustomerEmail:  m.CustomerEmail,
		CustomerPhone:  m.CustomerPhone,
		AddressLine:    m.AddressLine,
		City:           m.City,
		PostalCode:     m.PostalCode,
		Country:        m.Country,
		Subtotal:       m.Subtotal,
		ShippingFee:    m.ShippingFee,
		Tax:            m.Tax,
		Total:          m.Total,
		Currency:       m.Currency,
		PaymentStatus:  domain.PaymentStatus(m.PaymentStatus),
		OrderStatus:    domain.OrderStatus(m.OrderStatus),
		PaymentRef:     m.PaymentRef,
		TrackingNumber: m.TrackingNumber,
		TrackingURL:    m.TrackingURL,
		AdminNotes:     m.AdminNotes,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		Lines:          make([]domain.OrderLine, len(m.Lines)),
	}

	for i, line := range m.Lines {
		order.Lines[i] = *line.toDomain()
	}

	return order
}

// toDomain конвертирует GORM модель позиции в доменную сущность.
func (m *OrderLineModel) toDomain() *domain.OrderLine {
	return &domain.OrderLine{
		ID:           m.ID,
		OrderID:      m.OrderID,
		ProductID:    m.ProductID,
		ProductName:  m.ProductName,
		ProductImage: m.ProductImage,
		UnitPrice:    m.UnitPrice,
		Quantity:     m.Quantity,
		LineTotal:    m.LineTotal,
	}
}

// orderModelFromDomain конвертирует доменную сущность заказа в GORM модель.
func orderModelFromDomain(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:             o.ID,
		Number:         o.Number,
		CustomerID:     o.CustomerID,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		CustomerPhone:  o.CustomerPhone,
		AddressLine:    o.AddressLine,
		City:           o.City,
		PostalCode:     o.PostalCode,
		Country:        o.Country,
		Subtotal:       o.Subtotal,
		ShippingFee:    o.ShippingFee,
		Tax:            o.Tax,
		Total:          o.Total,
		Currency:       o.Currency,
		PaymentStatus:  string(o.PaymentStatus),
		OrderStatus:    string(o.OrderStatus),
		PaymentRef:     o.PaymentRef,
		TrackingNumber: o.TrackingNumber,
		TrackingURL:    o.TrackingURL,
		AdminNotes:     o.AdminNotes,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Lines:          make([]OrderLineModel, len(o.Lines)),
	}

	for i, line := range o.Lines {
		model.Lines[i] = OrderLineModel{
			ID:           line.ID,
			OrderID:      o.ID,
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			ProductImage: line.ProductImage,
			UnitPrice:    line.UnitPrice,
			Quantity:     line.Quantity,
			LineTotal:    line.LineTotal,
		}
	}

	return model
}

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create создаёт новый заказ с позициями в одной транзакции.
// Коллизия уникального номера (случайный суффикс) маловероятна,
// но при ней генерируем новый номер и повторяем вставку.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < maxNumberRetries; attempt++ {
		model := orderModelFromDomain(order)

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Позиции GORM создаст автоматически через ассоциацию
			return tx.Create(model).Error
		})
		if err == nil {
			order.CreatedAt = model.CreatedAt
			order.UpdatedAt = model.UpdatedAt
			return nil
		}

		if !isDuplicateKeyError(err) {
			return err
		}

		lastErr = err
		order.Number = domain.NewOrderNumber(time.Now())
		log.Warn().
			Str("order_id", order.ID).
			Str("new_number", order.Number).
			Msg("коллизия номера заказа, повторяем вставку")
	}

	return lastErr
}

// GetByID возвращает заказ по ID с загруженными позициями.
func (r *orderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.getOne(ctx, "id = ?", orderID)
}

// GetByNumber возвращает заказ по человекочитаемому номеру.
func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.getOne(ctx, "number = ?", number)
}

// GetByPaymentRef возвращает заказ по ссылке на checkout-сессию.
func (r *orderRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error) {
	return r.getOne(ctx, "payment_ref = ?", paymentRef)
}

func (r *orderRepository) getOne(ctx context.Context, cond string, arg string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where(cond, arg).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// ListByCustomerID возвращает список заказов покупателя с пагинацией.
// Возвращает также общее количество записей.
func (r *orderRepository) ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("customer_id = ?", customerID)

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	// Новые заказы первыми
	if err := query.
		Preload("Lines").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}

	return orders, totalCount, nil
}

// SetPaymentRef привязывает checkout-сессию к заказу.
// Перепривязка разрешена только пока оплата в статусе pending.
func (r *orderRepository) SetPaymentRef(ctx context.Context, orderID, paymentRef string) error {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_status = ?", orderID, string(domain.PaymentStatusPending)).
		Updates(map[string]interface{}{
			"payment_ref": paymentRef,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return domain.ErrInvalidTransition
	}

	return nil
}

// MarkPaid условно переводит оплату pending -> paid и заказ pending -> confirmed.
// RowsAffected == 0 означает, что переход уже применён (повторный вебхук)
// либо заказ в неожиданном статусе — вызывающий различает это сам.
func (r *orderRepository) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_status = ?", orderID, string(domain.PaymentStatusPending)).
		Updates(map[string]interface{}{
			"payment_status": string(domain.PaymentStatusPaid),
			"order_status":   string(domain.OrderStatusConfirmed),
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MarkPaymentFailed условно переводит оплату pending -> failed.
func (r *orderRepository) MarkPaymentFailed(ctx context.Context, orderID, reason string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_status = ?", orderID, string(domain.PaymentStatusPending)).
		Updates(map[string]interface{}{
			"payment_status": string(domain.PaymentStatusFailed),
			"failure_reason": reason,
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// MarkRefunded условно переводит оплату paid -> refunded.
func (r *orderRepository) MarkRefunded(ctx context.Context, orderID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND payment_status = ?", orderID, string(domain.PaymentStatusPaid)).
		Updates(map[string]interface{}{
			"payment_status": string(domain.PaymentStatusRefunded),
			"updated_at":     time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// UpdateOrderStatus условно обновляет операционный статус заказа.
// Условие на from-статус защищает от гонок между админами:
// проигравший UPDATE вернёт applied=false, а не затрёт чужой переход.
func (r *orderRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, tracking *domain.TrackingInfo) (bool, error) {
	updates := map[string]interface{}{
		"order_status": string(to),
		"updated_at":   time.Now(),
	}

	if tracking != nil {
		if tracking.Number != "" {
			updates["tracking_number"] = tracking.Number
		}
		if tracking.URL != "" {
			updates["tracking_url"] = tracking.URL
		}
		if tracking.AdminNotes != "" {
			updates["admin_notes"] = tracking.AdminNotes
		}
	}

	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ? AND order_status = ?", orderID, string(from)).
		Updates(updates)

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// MySQL возвращает ошибку с кодом 1062 при попытке вставить дубликат.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// GORM v2 имеет ErrDuplicatedKey, также проверяем текст ошибки MySQL
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
