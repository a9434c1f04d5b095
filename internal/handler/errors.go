// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/storefront/internal/domain"
	"example.com/storefront/pkg/logger"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleDomainError преобразует доменную ошибку в HTTP ответ.
// Используется всеми handlers для единообразной обработки ошибок.
// ВАЖНО: err не должен быть nil — это баг в вызывающем коде.
func HandleDomainError(c *gin.Context, err error, method string) {
	// Guard: nil ошибка — баг в вызывающем коде, логируем и возвращаем 500.
	if err == nil {
		logger.Error().Str("method", method).Msg("HandleDomainError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	log := logger.FromContext(c.Request.Context())

	// Ошибки валидации несут имя поля — отдаём его клиенту.
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: vErr.Error(),
		})
		return
	}

	// Маппинг доменных ошибок в HTTP статусы.
	var httpStatus int
	var errorCode string

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrNotificationNotFound):
		httpStatus = http.StatusNotFound
		errorCode = "not_found"
	case errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrInvalidQuantity):
		httpStatus = http.StatusBadRequest
		errorCode = "invalid_request"
	case errors.Is(err, domain.ErrNotPurchasable),
		errors.Is(err, domain.ErrInsufficientStock):
		httpStatus = http.StatusUnprocessableEntity
		errorCode = "unprocessable_cart"
	case errors.Is(err, domain.ErrInvalidTransition):
		httpStatus = http.StatusConflict
		errorCode = "invalid_transition"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		httpStatus = http.StatusServiceUnavailable
		errorCode = "gateway_unavailable"
	case errors.Is(err, domain.ErrSignatureInvalid):
		httpStatus = http.StatusUnauthorized
		errorCode = "unauthorized"
	default:
		httpStatus = http.StatusInternalServerError
		errorCode = "internal_error"
		log.Error().
			Err(err).
			Str("method", method).
			Msg("Внутренняя ошибка")
		// Текст внутренней ошибки клиенту не раскрываем.
		c.JSON(httpStatus, ErrorResponse{
			Error:   errorCode,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	c.JSON(httpStatus, ErrorResponse{
		Error:   errorCode,
		Message: err.Error(),
	})
}
