package domain

import (
	"errors"
	"fmt"
)

// Доменные ошибки витрины.
// Передают бизнес-ошибки между слоями; HTTP-слой мапит их на статусы.
var (
	// ErrOrderNotFound возвращается, когда заказ не найден.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrProductNotFound возвращается, когда товар отсутствует или неактивен.
	ErrProductNotFound = errors.New("товар не найден или недоступен")

	// ErrNotPurchasable возвращается для реферальных позиций,
	// которые нельзя купить напрямую.
	ErrNotPurchasable = errors.New("товар не продаётся напрямую")

	// ErrInsufficientStock возвращается, когда остатка не хватает
	// на запрошенное количество.
	ErrInsufficientStock = errors.New("недостаточно товара на складе")

	// ErrEmptyCart возвращается при попытке оформить пустую корзину.
	ErrEmptyCart = errors.New("корзина пуста")

	// ErrInvalidQuantity возвращается при неположительном количестве.
	ErrInvalidQuantity = errors.New("количество должно быть больше нуля")

	// ErrGatewayUnavailable возвращается, когда платёжный шлюз не смог
	// создать checkout-сессию. Заказ остаётся pending, вызов можно повторить.
	ErrGatewayUnavailable = errors.New("платёжный шлюз недоступен")

	// ErrSignatureInvalid возвращается при неверной подписи события шлюза.
	ErrSignatureInvalid = errors.New("неверная подпись события")

	// ErrInvalidTransition возвращается при недопустимом переходе статуса.
	ErrInvalidTransition = errors.New("недопустимый переход статуса")

	// ErrNotificationNotFound возвращается, когда уведомление не найдено.
	ErrNotificationNotFound = errors.New("уведомление не найдено")
)

// ValidationError — ошибка валидации входных данных с указанием поля.
type ValidationError struct {
	Field  string
	Reason string
}

// Error возвращает текст ошибки валидации.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("ошибка валидации поля %s: %s", e.Field, e.Reason)
}

// ItemError оборачивает ошибку доступности товара, называя позицию.
// Проверка конкретной причины — через errors.Is с сентинелами выше.
func ItemError(base error, productID string) error {
	return fmt.Errorf("%w: товар %s", base, productID)
}
