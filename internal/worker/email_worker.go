// Package worker содержит фоновые процессы витрины.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/email"
	"example.com/storefront/pkg/kafka"
	"example.com/storefront/pkg/logger"
)

// maxSendRetries — число повторов отправки до ухода сообщения в DLQ.
const maxSendRetries = 3

// KafkaConsumer — интерфейс для чтения сообщений из Kafka.
// Позволяет замокать kafka.Consumer в unit-тестах.
type KafkaConsumer interface {
	ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error
	Close() error
}

// EmailWorker слушает email-топик и отправляет письма покупателям.
// Письма — best-effort: подтверждение вебхука никогда не ждёт SMTP,
// события идут через outbox и Kafka.
type EmailWorker struct {
	consumer KafkaConsumer
	sender   email.Sender
}

// NewEmailWorker создаёт воркер отправки писем.
func NewEmailWorker(consumer KafkaConsumer, sender email.Sender) *EmailWorker {
	return &EmailWorker{
		consumer: consumer,
		sender:   sender,
	}
}

// Run запускает чтение email-событий. Блокирует до отмены контекста.
func (w *EmailWorker) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("topic", kafka.TopicEmail).
		Msg("Запуск Email Worker")

	return w.consumer.ConsumeWithRetry(ctx, w.handleMessage, maxSendRetries)
}

// Close останавливает consumer.
func (w *EmailWorker) Close() error {
	return w.consumer.Close()
}

// handleMessage обрабатывает одно событие письма.
func (w *EmailWorker) handleMessage(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	var event domain.EmailEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Error().
			Err(err).
			Str("payload", string(msg.Value)).
			Msg("Ошибка десериализации email-события")
		return fmt.Errorf("ошибка десериализации: %w", err)
	}

	if err := w.sender.Send(ctx, &event); err != nil {
		log.Error().
			Err(err).
			Str("template", event.Template).
			Str("order_number", event.OrderNumber).
			Msg("Ошибка отправки письма")
		return err
	}

	return nil
}
