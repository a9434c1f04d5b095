// Package service содержит бизнес-логику витрины.
package service

import (
	"context"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/logger"
)

// maxQuantityPerLine — верхняя граница количества в одной позиции.
const maxQuantityPerLine = 100

// CartItem — позиция корзины, как её прислал клиент.
// Клиенту доверяем только ID товара и количество; цены и названия
// берём из каталога.
type CartItem struct {
	ProductID string
	Quantity  int32
}

// VerifiedCart — проверенная корзина с авторитетными ценами.
type VerifiedCart struct {
	Lines    []domain.OrderLine
	Subtotal int64
	Currency string
}

// CartService проверяет корзину против каталога.
type CartService interface {
	// Verify проверяет каждую позицию: товар существует и активен,
	// продаётся напрямую, остатка хватает. Цены и названия берутся
	// из каталога, присланные клиентом значения игнорируются.
	// Первая же невалидная позиция прерывает проверку.
	Verify(ctx context.Context, items []CartItem) (*VerifiedCart, error)
}

// cartService — реализация CartService.
type cartService struct {
	products repository.ProductRepository
}

// NewCartService создаёт сервис проверки корзины.
func NewCartService(products repository.ProductRepository) CartService {
	return &cartService{products: products}
}

// Verify проверяет корзину и строит позиции заказа со снапшотом каталога.
func (s *cartService) Verify(ctx context.Context, items []CartItem) (*VerifiedCart, error) {
	log := logger.FromContext(ctx)

	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	// Схлопываем дубликаты позиций: два раза один товар — одна позиция
	// с суммарным количеством.
	merged := make(map[string]int32, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 || item.Quantity > maxQuantityPerLine {
			return nil, domain.ItemError(domain.ErrInvalidQuantity, item.ProductID)
		}
		if _, seen := merged[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		merged[item.ProductID] += item.Quantity
	}

	products, err := s.products.GetActiveByIDs(ctx, order)
	if err != nil {
		return nil, err
	}

	cart := &VerifiedCart{Lines: make([]domain.OrderLine, 0, len(order))}

	for _, productID := range order {
		quantity := merged[productID]

		product, ok := products[productID]
		if !ok {
			log.Warn().Str("product_id", productID).Msg("товар из корзины не найден в каталоге")
			return nil, domain.ItemError(domain.ErrProductNotFound, productID)
		}

		if !product.Purchasable {
			return nil, domain.ItemError(domain.ErrNotPurchasable, productID)
		}

		if !product.AvailableFor(quantity) {
			log.Warn().
				Str("product_id", productID).
				Int32("requested", quantity).
				Int32("stock", product.Stock).
				Msg("остатка не хватает на запрошенное количество")
			return nil, domain.ItemError(domain.ErrInsufficientStock, productID)
		}

		line := domain.OrderLine{
			ProductID:    product.ID,
			ProductName:  product.Name,
			ProductImage: product.Image,
			UnitPrice:    product.Price, // Цена каталога, не клиента
			Quantity:     quantity,
			LineTotal:    product.Price * int64(quantity),
		}
		cart.Lines = append(cart.Lines, line)
		cart.Subtotal += line.LineTotal

		if cart.Currency == "" {
			cart.Currency = product.Currency
		}
	}

	return cart, nil
}
