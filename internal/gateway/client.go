// Package gateway содержит клиент внешнего платёжного шлюза:
// создание checkout-сессий, проверку их статуса и верификацию
// подписи входящих событий.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/storefront/internal/domain"
	"example.com/storefront/pkg/circuitbreaker"
	"example.com/storefront/pkg/config"
	"example.com/storefront/pkg/logger"
)

// SessionStatus — статус checkout-сессии на стороне шлюза.
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// CheckoutSession — созданная шлюзом сессия оплаты.
type CheckoutSession struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	Status      SessionStatus `json:"status"`
	PaymentPaid bool          `json:"payment_paid"`
}

// CheckoutRequest — запрос на создание сессии.
// Суммы в минимальных единицах валюты.
type CheckoutRequest struct {
	OrderID       string         `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	CustomerEmail string         `json:"customer_email"`
	SuccessURL    string         `json:"success_url"`
	CancelURL     string         `json:"cancel_url"`
	LineItems     []CheckoutLine `json:"line_items"`
}

// CheckoutLine — позиция в описании сессии для страницы оплаты шлюза.
// Название и картинка берутся из снапшота позиции заказа, а не из
// текущего каталога.
type CheckoutLine struct {
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
}

// Client определяет операции платёжного шлюза.
type Client interface {
	// CreateCheckoutSession создаёт сессию оплаты для заказа.
	CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error)

	// CheckSession возвращает актуальный статус сессии.
	// Используется при возврате покупателя со страницы оплаты:
	// редиректу клиента не доверяем, спрашиваем шлюз напрямую.
	CheckSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// httpClient — HTTP реализация клиента шлюза под защитой Circuit Breaker.
type httpClient struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	client     *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewClient создаёт клиент платёжного шлюза.
func NewClient(cfg config.GatewayConfig) Client {
	return &httpClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: circuitbreaker.New("payment-gateway"),
	}
}

// CreateCheckoutSession создаёт сессию оплаты.
// Любая ошибка транспорта или 5xx шлюза превращается в
// domain.ErrGatewayUnavailable — заказ остаётся pending, вызов повторяем.
func (c *httpClient) CreateCheckoutSession(ctx context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	if req.SuccessURL == "" {
		req.SuccessURL = c.successURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.cancelURL
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса сессии: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", body)
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).
			Str("order_id", req.OrderID).
			Msg("не удалось создать checkout-сессию")
		return nil, domain.ErrGatewayUnavailable
	}

	return result.(*CheckoutSession), nil
}

// CheckSession запрашивает у шлюза актуальный статус сессии.
func (c *httpClient) CheckSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil)
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).
			Str("session_id", sessionID).
			Msg("не удалось проверить статус сессии")
		return nil, domain.ErrGatewayUnavailable
	}

	return result.(*CheckoutSession), nil
}

// doRequest выполняет запрос к шлюзу и разбирает ответ.
func (c *httpClient) doRequest(ctx context.Context, method, path string, body []byte) (*CheckoutSession, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	log := logger.FromContext(ctx)
	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("запрос к платёжному шлюзу")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Тело ответа читаем для диагностики, но не возвращаем наверх
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("шлюз вернул статус %d: %s", resp.StatusCode, string(respBody))
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("разбор ответа шлюза: %w", err)
	}

	return &session, nil
}
