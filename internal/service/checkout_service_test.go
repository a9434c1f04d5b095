package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/pkg/config"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{
		ShippingFee:      50000, // 500.00
		FreeShippingOver: 90000, // 900.00
		TaxRateBP:        0,
	}
}

type checkoutFixture struct {
	svc      CheckoutService
	orders   *mockOrderRepository
	products *mockProductRepository
	gateway  *mockGatewayClient
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:   newMockOrderRepo(),
		products: testCatalog(),
		gateway: &mockGatewayClient{
			session: &gateway.CheckoutSession{
				ID:     "cs_test_123",
				URL:    "https://gateway.example.com/pay/cs_test_123",
				Status: gateway.SessionStatusOpen,
			},
		},
	}
	f.svc = NewCheckoutService(NewCartService(f.products), f.orders, f.gateway, testPricing())
	return f
}

func validCheckoutRequest() CheckoutRequest {
	return CheckoutRequest{
		CustomerName:  "Иван Петров",
		CustomerEmail: "ivan@example.com",
		AddressLine:   "ул. Ленина, 1",
		City:          "Москва",
		Items: []CartItem{
			{ProductID: "product-mug", Quantity: 2},
		},
	}
}

func TestCheckoutService_Checkout(t *testing.T) {
	f := newCheckoutFixture()

	result, err := f.svc.Checkout(context.Background(), validCheckoutRequest())

	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderNumber)
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{6}$`, result.OrderNumber)
	assert.Equal(t, "https://gateway.example.com/pay/cs_test_123", result.RedirectURL)

	// Заказ сохранён со статусами pending, сессия привязана
	order, err := f.orders.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusPending, order.OrderStatus)
	require.NotNil(t, order.PaymentRef)
	assert.Equal(t, "cs_test_123", *order.PaymentRef)

	// Суммы из каталога: 2*1200 + доставка 50000
	assert.Equal(t, int64(2400), order.Subtotal)
	assert.Equal(t, int64(50000), order.ShippingFee)
	assert.Equal(t, int64(52400), order.Total)

	// Шлюзу уходят канонические название и картинка из снапшота заказа
	require.NotNil(t, f.gateway.createdReq)
	assert.Equal(t, order.Total, f.gateway.createdReq.Amount)
	assert.Equal(t, order.Number, f.gateway.createdReq.OrderNumber)
	require.Len(t, f.gateway.createdReq.LineItems, 1)
	assert.Equal(t, "Кружка", f.gateway.createdReq.LineItems[0].Name)
	assert.Equal(t, "https://cdn.shop.example.com/mug.png", f.gateway.createdReq.LineItems[0].Image)
}

func TestCheckoutService_Checkout_FreeShipping(t *testing.T) {
	f := newCheckoutFixture()

	req := validCheckoutRequest()
	// 100 постеров по 999 = 99900, выше порога 90000
	req.Items = []CartItem{{ProductID: "product-poster", Quantity: 100}}

	result, err := f.svc.Checkout(context.Background(), req)

	require.NoError(t, err)
	order, _ := f.orders.GetByID(context.Background(), result.OrderID)
	assert.Equal(t, int64(99900), order.Subtotal)
	assert.Zero(t, order.ShippingFee, "сумма выше порога бесплатной доставки")
}

func TestCheckoutService_Checkout_InvalidCart(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(req *CheckoutRequest)
		expectedErr error
	}{
		{
			name:        "пустая корзина",
			mutate:      func(req *CheckoutRequest) { req.Items = nil },
			expectedErr: domain.ErrEmptyCart,
		},
		{
			name: "неизвестный товар",
			mutate: func(req *CheckoutRequest) {
				req.Items = []CartItem{{ProductID: "no-such", Quantity: 1}}
			},
			expectedErr: domain.ErrProductNotFound,
		},
		{
			name: "остатка не хватает",
			mutate: func(req *CheckoutRequest) {
				req.Items = []CartItem{{ProductID: "product-mug", Quantity: 99}}
			},
			expectedErr: domain.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture()

			req := validCheckoutRequest()
			tt.mutate(&req)

			result, err := f.svc.Checkout(context.Background(), req)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Nil(t, result)
			assert.Empty(t, f.orders.orders, "заказ не создаётся при невалидной корзине")
		})
	}
}

func TestCheckoutService_Checkout_MissingContact(t *testing.T) {
	f := newCheckoutFixture()

	req := validCheckoutRequest()
	req.CustomerEmail = ""

	_, err := f.svc.Checkout(context.Background(), req)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customer_email", verr.Field)
}

func TestCheckoutService_Checkout_GatewayDown(t *testing.T) {
	f := newCheckoutFixture()
	f.gateway.createErr = domain.ErrGatewayUnavailable

	result, err := f.svc.Checkout(context.Background(), validCheckoutRequest())

	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	assert.Nil(t, result)

	// Заказ создан и остался pending: оформление можно повторить
	require.Len(t, f.orders.orders, 1)
	for _, order := range f.orders.orders {
		assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
		assert.Nil(t, order.PaymentRef)
	}
}
