package outbox

import "time"

// OutboxModel — GORM модель таблицы outbox. Каждая строка — одно
// сообщение для Kafka, записанное вместе с породившим его событием
// заказа: письмо ставится в очередь тем же процессом, что и меняет
// заказ, а публикацией занимается фоновый воркер.
type OutboxModel struct {
	ID string `gorm:"column:id;type:varchar(36);primaryKey"`

	// Агрегат-источник: для писем это заказ ("order" + его ID).
	AggregateType string `gorm:"column:aggregate_type;type:varchar(50);not null;index:idx_outbox_aggregate"`
	AggregateID   string `gorm:"column:aggregate_id;type:varchar(36);not null;index:idx_outbox_aggregate"`

	// Тип события, например "email.order_confirmed" или
	// "email.order_shipped". Совпадает с шаблоном письма.
	EventType string `gorm:"column:event_type;type:varchar(100);not null"`

	// Топик и ключ сообщения. Ключ — номер заказа: письма по одному
	// заказу попадают в одну партицию и сохраняют порядок.
	Topic      string `gorm:"column:topic;type:varchar(100);not null"`
	MessageKey string `gorm:"column:message_key;type:varchar(100);not null"`

	// Payload — сериализованный domain.EmailEvent.
	// Headers несут trace_id и correlation_id исходного запроса.
	Payload []byte `gorm:"column:payload;type:json;not null"`
	Headers []byte `gorm:"column:headers;type:json"`

	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	ProcessedAt *time.Time `gorm:"column:processed_at;index:idx_outbox_unprocessed"`
	RetryCount  int        `gorm:"column:retry_count;not null;default:0;index:idx_outbox_retry"`
	LastError   *string    `gorm:"column:last_error;type:text"`
}

func (OutboxModel) TableName() string {
	return "outbox"
}

// ToDomain конвертирует строку таблицы в доменную запись.
// Битые headers не блокируют отправку письма — просто теряем трейс.
func (m *OutboxModel) ToDomain() *Outbox {
	o := &Outbox{
		ID:            m.ID,
		AggregateType: m.AggregateType,
		AggregateID:   m.AggregateID,
		EventType:     m.EventType,
		Topic:         m.Topic,
		MessageKey:    m.MessageKey,
		Payload:       m.Payload,
		CreatedAt:     m.CreatedAt,
		ProcessedAt:   m.ProcessedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
	}

	if len(m.Headers) > 0 {
		_ = o.SetHeadersFromJSON(m.Headers)
	}

	return o
}

// ModelFromDomain конвертирует доменную запись в GORM модель.
func ModelFromDomain(o *Outbox) *OutboxModel {
	model := &OutboxModel{
		ID:            o.ID,
		AggregateType: o.AggregateType,
		AggregateID:   o.AggregateID,
		EventType:     o.EventType,
		Topic:         o.Topic,
		MessageKey:    o.MessageKey,
		Payload:       o.Payload,
		CreatedAt:     o.CreatedAt,
		ProcessedAt:   o.ProcessedAt,
		RetryCount:    o.RetryCount,
		LastError:     o.LastError,
	}

	if o.Headers != nil {
		if data, err := o.HeadersJSON(); err == nil {
			model.Headers = data
		}
	}

	return model
}
