package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/config"
	"example.com/storefront/pkg/logger"
	"example.com/storefront/pkg/metrics"
)

// CheckoutRequest — запрос оформления заказа.
// Присланные клиентом цены сюда не попадают: корзина — только ID и количество.
type CheckoutRequest struct {
	CustomerID *string // nil для гостевого заказа

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	AddressLine   string
	City          string
	PostalCode    string
	Country       string

	Items []CartItem
}

// CheckoutResult — результат оформления: номер заказа и адрес оплаты.
type CheckoutResult struct {
	OrderID     string
	OrderNumber string
	RedirectURL string
}

// CheckoutService оформляет заказ и создаёт сессию оплаты.
type CheckoutService interface {
	// Checkout проверяет корзину, создаёт pending-заказ и сессию шлюза.
	// При недоступности шлюза заказ остаётся pending, возвращается
	// ErrGatewayUnavailable — клиент может повторить оформление.
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)

	// GetOrder возвращает заказ по номеру.
	GetOrder(ctx context.Context, number string) (*domain.Order, error)

	// ListOrders возвращает заказы покупателя с пагинацией.
	ListOrders(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error)
}

// checkoutService — реализация CheckoutService.
type checkoutService struct {
	cart    CartService
	orders  repository.OrderRepository
	gateway gateway.Client
	pricing config.PricingConfig
}

// NewCheckoutService создаёт сервис оформления заказа.
func NewCheckoutService(
	cart CartService,
	orders repository.OrderRepository,
	gatewayClient gateway.Client,
	pricing config.PricingConfig,
) CheckoutService {
	return &checkoutService{
		cart:    cart,
		orders:  orders,
		gateway: gatewayClient,
		pricing: pricing,
	}
}

// Checkout оформляет заказ.
func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	log := logger.FromContext(ctx)

	// 1. Проверяем корзину против каталога: цены и названия — оттуда
	cart, err := s.cart.Verify(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	// 2. Собираем заказ со снапшотом контактов и сумм
	now := time.Now()
	order := &domain.Order{
		ID:            uuid.New().String(),
		Number:        domain.NewOrderNumber(now),
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		AddressLine:   req.AddressLine,
		City:          req.City,
		PostalCode:    req.PostalCode,
		Country:       req.Country,
		Currency:      cart.Currency,
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		Lines:         make([]domain.OrderLine, len(cart.Lines)),
	}

	for i, line := range cart.Lines {
		line.ID = uuid.New().String()
		line.OrderID = order.ID
		order.Lines[i] = line
	}

	order.ShippingFee = s.shippingFee(cart.Subtotal)
	order.Tax = cart.Subtotal * s.pricing.TaxRateBP / 10000
	order.CalculateTotals()

	if err := order.Validate(); err != nil {
		return nil, err
	}

	// 3. Сохраняем pending-заказ до похода в шлюз: упавший шлюз
	// не должен терять заказ
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("создание заказа: %w", err)
	}

	metrics.OrdersCreatedTotal.Inc()
	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Int64("total", order.Total).
		Int("lines", len(order.Lines)).
		Msg("Заказ создан, создаём сессию оплаты")

	// 4. Создаём checkout-сессию шлюза
	session, err := s.createSession(ctx, order)
	if err != nil {
		// Заказ остаётся pending — оформление можно повторить
		return nil, err
	}

	// 5. Привязываем сессию к заказу
	if err := s.orders.SetPaymentRef(ctx, order.ID, session.ID); err != nil {
		log.Error().Err(err).
			Str("order_id", order.ID).
			Str("session_id", session.ID).
			Msg("не удалось привязать сессию к заказу")
		return nil, fmt.Errorf("привязка сессии: %w", err)
	}

	return &CheckoutResult{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		RedirectURL: session.URL,
	}, nil
}

// createSession создаёт сессию оплаты в шлюзе.
func (s *checkoutService) createSession(ctx context.Context, order *domain.Order) (*gateway.CheckoutSession, error) {
	lines := make([]gateway.CheckoutLine, len(order.Lines))
	for i, line := range order.Lines {
		lines[i] = gateway.CheckoutLine{
			Name:      line.ProductName,
			Image:     line.ProductImage,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		}
	}

	return s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutRequest{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Amount:        order.Total,
		Currency:      order.Currency,
		CustomerEmail: order.CustomerEmail,
		LineItems:     lines,
	})
}

// shippingFee возвращает стоимость доставки с учётом порога бесплатной.
func (s *checkoutService) shippingFee(subtotal int64) int64 {
	if s.pricing.FreeShippingOver > 0 && subtotal >= s.pricing.FreeShippingOver {
		return 0
	}
	return s.pricing.ShippingFee
}

// GetOrder возвращает заказ по номеру.
func (s *checkoutService) GetOrder(ctx context.Context, number string) (*domain.Order, error) {
	return s.orders.GetByNumber(ctx, number)
}

// ListOrders возвращает заказы покупателя.
func (s *checkoutService) ListOrders(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	return s.orders.ListByCustomerID(ctx, customerID, offset, limit)
}
