// Package domain содержит бизнес-сущности витрины и их машины состояний.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// PaymentStatus — статус оплаты заказа.
type PaymentStatus string

const (
	// PaymentStatusPending — заказ создан, оплата не подтверждена.
	PaymentStatusPending PaymentStatus = "pending"

	// PaymentStatusPaid — шлюз подтвердил оплату.
	PaymentStatusPaid PaymentStatus = "paid"

	// PaymentStatusFailed — оплата отклонена шлюзом.
	PaymentStatusFailed PaymentStatus = "failed"

	// PaymentStatusRefunded — оплата возвращена покупателю.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus — операционный статус заказа.
type OrderStatus string

const (
	// OrderStatusPending — ожидает подтверждения оплаты.
	OrderStatusPending OrderStatus = "pending"

	// OrderStatusConfirmed — оплата прошла, заказ принят в работу.
	OrderStatusConfirmed OrderStatus = "confirmed"

	// OrderStatusProcessing — заказ собирается.
	OrderStatusProcessing OrderStatus = "processing"

	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"

	// OrderStatusDelivered — заказ доставлен. Терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"

	// OrderStatusCancelled — заказ отменён. Терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// paymentTransitions определяет валидные переходы статуса оплаты.
// Статус движется только вперёд: pending -> {paid, failed}, paid -> refunded.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:    {PaymentStatusRefunded},
	// failed и refunded — терминальные состояния
}

// orderTransitions определяет валидные переходы операционного статуса.
// cancelled достижим из любого недоставленного состояния.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	// delivered и cancelled — терминальные состояния
}

// CanTransitionTo проверяет допустимость перехода статуса оплаты.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanTransitionTo проверяет допустимость перехода операционного статуса.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для терминального операционного статуса.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// ValidOrderStatus проверяет, что строка — известный операционный статус.
func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order — заказ покупателя.
// Контакты, адрес и суммы снимаются в момент создания и после него
// не меняются (кроме статусов, трекинга и заметок администратора).
type Order struct {
	ID         string  // UUID заказа
	Number     string  // Человекочитаемый уникальный номер (ORD-YYYYMMDD-XXXXXX)
	CustomerID *string // ID покупателя (nil для гостевого заказа)

	// Снапшот контактов и адреса доставки.
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddressLine   string
	City          string
	PostalCode    string
	Country       string

	Lines []OrderLine // Позиции заказа

	// Суммы в минимальных единицах валюты (копейки/центы).
	Subtotal    int64
	ShippingFee int64
	Tax         int64
	Total       int64
	Currency    string // ISO 4217

	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus
	PaymentRef    *string // Ссылка на checkout-сессию шлюза

	TrackingNumber *string
	TrackingURL    *string
	AdminNotes     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackingInfo — опциональные данные, сопровождающие переход статуса
// администратором (трек-номер при отправке, заметки при отмене).
type TrackingInfo struct {
	Number     string
	URL        string
	AdminNotes string
}

// OrderLine — позиция заказа со снапшотом товара на момент покупки.
// Последующие правки каталога не затрагивают существующие заказы.
type OrderLine struct {
	ID           string // UUID позиции
	OrderID      string
	ProductID    string
	ProductName  string // Название на момент заказа
	ProductImage string // Картинка на момент заказа
	UnitPrice    int64  // Цена за единицу в минимальных единицах
	Quantity     int32
	LineTotal    int64 // UnitPrice * Quantity
}

// Validate проверяет снапшот контактов и адреса перед созданием заказа.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.CustomerName) == "" {
		return &ValidationError{Field: "customer_name", Reason: "имя получателя обязательно"}
	}
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return &ValidationError{Field: "customer_email", Reason: "email обязателен"}
	}
	if strings.TrimSpace(o.AddressLine) == "" {
		return &ValidationError{Field: "address_line", Reason: "адрес доставки обязателен"}
	}
	if strings.TrimSpace(o.City) == "" {
		return &ValidationError{Field: "city", Reason: "город обязателен"}
	}
	if len(o.Lines) == 0 {
		return ErrEmptyCart
	}
	return nil
}

// CalculateTotals пересчитывает суммы заказа из позиций.
// Вызывается один раз при создании; после этого суммы не меняются.
func (o *Order) CalculateTotals() {
	var subtotal int64
	for i := range o.Lines {
		o.Lines[i].LineTotal = o.Lines[i].UnitPrice * int64(o.Lines[i].Quantity)
		subtotal += o.Lines[i].LineTotal
	}
	o.Subtotal = subtotal
	o.Total = subtotal + o.ShippingFee + o.Tax
}

// orderNumberPrefix — префикс человекочитаемого номера заказа.
const orderNumberPrefix = "ORD"

// NewOrderNumber генерирует номер заказа вида ORD-20260830-7F3A2C.
// Номер не раскрывает последовательный идентификатор БД; уникальность
// закреплена индексом и перепроверяется при вставке.
func NewOrderNumber(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)

	return orderNumberPrefix + "-" +
		now.Format("20060102") + "-" +
		strings.ToUpper(hex.EncodeToString(suffix))
}
