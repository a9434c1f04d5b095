package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"example.com/storefront/internal/domain"
)

// SignatureHeader — заголовок с HMAC-SHA256 подписью тела вебхука.
const SignatureHeader = "X-Gateway-Signature"

// Типы событий шлюза. Неизвестные типы подтверждаются без обработки.
// checkout.session_completed приходит от шлюзов, которые подтверждают
// оплату завершением сессии, а не отдельным payment.succeeded.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentFailed    = "payment.failed"
	EventPaymentRefunded  = "payment.refunded"
	EventSessionCompleted = "checkout.session_completed"
)

// Event — событие платёжного шлюза из вебхука.
// Шлюз доставляет события минимум один раз, порядок не гарантирован.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"` // Причина отказа для payment.failed
}

// WebhookVerifier проверяет подпись и разбирает события вебхука.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier создаёт верификатор с общим секретом шлюза.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify проверяет HMAC-SHA256 подпись сырого тела запроса.
// Сравнение через hmac.Equal — за постоянное время.
func (v *WebhookVerifier) Verify(body []byte, signature string) error {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)

	if !hmac.Equal(sig, mac.Sum(nil)) {
		return domain.ErrSignatureInvalid
	}

	return nil
}

// Sign вычисляет подпись тела. Используется в тестах и
// при локальной эмуляции шлюза.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent проверяет подпись и разбирает событие.
// Тело должно быть сырым, без переформатирования: подпись
// считается от байтов запроса.
func (v *WebhookVerifier) ParseEvent(body []byte, signature string) (*Event, error) {
	if err := v.Verify(body, signature); err != nil {
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("разбор события шлюза: %w", err)
	}

	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("событие без id или type")
	}

	return &event, nil
}
