// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/service"
	"example.com/storefront/pkg/logger"
)

// maxWebhookBody — предел размера тела вебхука.
const maxWebhookBody = 64 * 1024

// WebhookHandler — приём событий от платёжного шлюза.
// Вызывающая сторона не доверена: подпись проверяется по сырому телу,
// детали ошибок наружу не отдаются.
type WebhookHandler struct {
	reconcile service.ReconcileService
	verifier  *gateway.WebhookVerifier
}

// NewWebhookHandler создаёт обработчик вебхуков шлюза.
func NewWebhookHandler(reconcile service.ReconcileService, verifier *gateway.WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{reconcile: reconcile, verifier: verifier}
}

// HandleEvent обрабатывает событие платёжного шлюза.
// Шлюз доставляет события at-least-once: дубликаты подтверждаются 200,
// чтобы остановить ретраи. 4xx отдаём только на невалидные запросы,
// которые ретраить бессмысленно.
// POST /api/v1/payment-events
func (h *WebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось прочитать тело вебхука")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидный запрос",
		})
		return
	}

	event, err := h.verifier.ParseEvent(body, c.GetHeader(gateway.SignatureHeader))
	if err != nil {
		// Не раскрываем, подпись это или формат: ответ одинаково скуп
		log.Warn().Err(err).Str("ip", c.ClientIP()).Msg("Отклонён вебхук шлюза")
		if errors.Is(err, domain.ErrSignatureInvalid) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "unauthorized",
				Message: "Запрос отклонён",
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Запрос отклонён",
		})
		return
	}

	if err := h.reconcile.HandleEvent(ctx, event); err != nil {
		// Неизвестный заказ ретраить бессмысленно — 404 останавливает шлюз
		if errors.Is(err, domain.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Запрос отклонён",
			})
			return
		}
		// Временная ошибка (БД недоступна) — 500, шлюз повторит доставку
		log.Error().Err(err).Str("event_id", event.ID).Msg("Ошибка обработки события оплаты")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
