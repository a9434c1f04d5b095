// Package worker содержит unit тесты для EmailWorker.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/storefront/internal/domain"
	"example.com/storefront/pkg/kafka"
)

// mockConsumer — мок KafkaConsumer.
type mockConsumer struct {
	consumeErr error
	closed     bool
}

func (m *mockConsumer) ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error {
	if m.consumeErr != nil {
		return m.consumeErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockConsumer) Close() error {
	m.closed = true
	return nil
}

// mockSender — мок email.Sender.
type mockSender struct {
	sendErr error
	sent    []*domain.EmailEvent
}

func (m *mockSender) Send(_ context.Context, event *domain.EmailEvent) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, event)
	return nil
}

func testEmailEvent(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(domain.EmailEvent{
		Template:    string(domain.NotificationOrderConfirmed),
		To:          "petr@example.com",
		OrderNumber: "ORD-20260830-7F3A2C",
		Data: map[string]string{
			"customer_name": "Пётр Иванов",
			"total":         "2900.00",
			"currency":      "RUB",
		},
	})
	require.NoError(t, err)
	return raw
}

func TestEmailWorker_HandleMessage_Success(t *testing.T) {
	sender := &mockSender{}
	w := NewEmailWorker(&mockConsumer{}, sender)

	msg := &kafka.Message{
		Topic: kafka.TopicEmail,
		Key:   []byte("ORD-20260830-7F3A2C"),
		Value: testEmailEvent(t),
	}
	err := w.handleMessage(context.Background(), msg)

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "petr@example.com", sender.sent[0].To)
	assert.Equal(t, "order_confirmed", sender.sent[0].Template)
}

func TestEmailWorker_HandleMessage_DeserializeError(t *testing.T) {
	sender := &mockSender{}
	w := NewEmailWorker(&mockConsumer{}, sender)

	msg := &kafka.Message{
		Topic: kafka.TopicEmail,
		Value: []byte(`{невалидный json`),
	}
	err := w.handleMessage(context.Background(), msg)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "десериализации")
	assert.Empty(t, sender.sent, "битое сообщение не должно дойти до отправки")
}

func TestEmailWorker_HandleMessage_SendError(t *testing.T) {
	sender := &mockSender{sendErr: errors.New("smtp: connection refused")}
	w := NewEmailWorker(&mockConsumer{}, sender)

	msg := &kafka.Message{
		Topic: kafka.TopicEmail,
		Value: testEmailEvent(t),
	}
	err := w.handleMessage(context.Background(), msg)

	// Ошибка возвращается — consumer сделает retry и затем отправит в DLQ
	assert.Error(t, err)
}

func TestEmailWorker_Run_ContextCancel(t *testing.T) {
	w := NewEmailWorker(&mockConsumer{}, &mockSender{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmailWorker_Close(t *testing.T) {
	consumer := &mockConsumer{}
	w := NewEmailWorker(consumer, &mockSender{})

	require.NoError(t, w.Close())
	assert.True(t, consumer.closed)
}
