// Package repository содержит unit тесты репозиториев витрины.
package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/storefront/internal/domain"
)

// =====================================
// Вспомогательные функции
// =====================================

// setupMockDB создаёт мок базы данных с GORM.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err, "Ошибка создания sqlmock")

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Ошибка инициализации GORM")

	return gormDB, mock, func() { _ = db.Close() }
}

var orderColumns = []string{
	"id", "number", "customer_id",
	"customer_name", "customer_email", "customer_phone",
	"address_line", "city", "postal_code", "country",
	"subtotal", "shipping_fee", "tax", "total", "currency",
	"payment_status", "order_status", "payment_ref", "failure_reason",
	"tracking_number", "tracking_url", "admin_notes",
	"created_at", "updated_at",
}

func orderRow(id, number, paymentStatus, orderStatus string) []driver.Value {
	now := time.Now().Truncate(time.Second)
	return []driver.Value{
		id, number, nil,
		"Иван Петров", "ivan@example.com", "",
		"ул. Ленина, 1", "Москва", "", "RU",
		int64(3399), int64(500), int64(0), int64(3899), "RUB",
		paymentStatus, orderStatus, nil, nil,
		nil, nil, nil,
		now, now,
	}
}

// =====================================
// Тесты GetByID
// =====================================

func TestOrderRepository_GetByID(t *testing.T) {
	tests := []struct {
		name        string
		orderID     string
		mockSetup   func(mock sqlmock.Sqlmock, orderID string)
		expectedErr error
		checkOrder  func(t *testing.T, order *domain.Order)
	}{
		{
			name:    "успешное получение с позициями",
			orderID: "order-123",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				rows := sqlmock.NewRows(orderColumns).
					AddRow(orderRow(orderID, "ORD-20260830-7F3A2C", "pending", "pending")...)
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnRows(rows)

				now := time.Now().Truncate(time.Second)
				lineRows := sqlmock.NewRows([]string{
					"id", "order_id", "product_id", "product_name", "product_image",
					"unit_price", "quantity", "line_total", "created_at",
				}).AddRow("line-1", orderID, "product-1", "Кружка", "", int64(1200), int32(2), int64(2400), now)
				mock.ExpectQuery("SELECT \\* FROM `order_lines` WHERE `order_lines`.`order_id` = \\?").
					WithArgs(orderID).WillReturnRows(lineRows)
			},
			expectedErr: nil,
			checkOrder: func(t *testing.T, order *domain.Order) {
				assert.Equal(t, "order-123", order.ID)
				assert.Equal(t, "ORD-20260830-7F3A2C", order.Number)
				assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
				require.Len(t, order.Lines, 1)
				assert.Equal(t, int64(2400), order.Lines[0].LineTotal)
			},
		},
		{
			name:    "не найден",
			orderID: "unknown-order",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				rows := sqlmock.NewRows(orderColumns)
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnRows(rows)
			},
			expectedErr: domain.ErrOrderNotFound,
		},
		{
			name:    "ошибка БД",
			orderID: "order-456",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectQuery("SELECT \\* FROM `orders` WHERE id = \\? ORDER BY `orders`.`id` LIMIT \\?").
					WithArgs(orderID, 1).WillReturnError(sql.ErrConnDone)
			},
			expectedErr: sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewOrderRepository(gormDB)
			tt.mockSetup(mock, tt.orderID)

			order, err := repo.GetByID(context.Background(), tt.orderID)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, order)
			} else {
				require.NoError(t, err)
				require.NotNil(t, order)
				if tt.checkOrder != nil {
					tt.checkOrder(t, order)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =====================================
// Тесты MarkPaid
// =====================================

func TestOrderRepository_MarkPaid(t *testing.T) {
	tests := []struct {
		name            string
		orderID         string
		mockSetup       func(mock sqlmock.Sqlmock, orderID string)
		expectedApplied bool
		expectedErr     error
	}{
		{
			name:    "переход выполнен этим вызовом",
			orderID: "order-123",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("confirmed", "paid", sqlmock.AnyArg(), orderID, "pending").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedApplied: true,
		},
		{
			name:    "повторный вебхук: переход уже применён",
			orderID: "order-123",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("confirmed", "paid", sqlmock.AnyArg(), orderID, "pending").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedApplied: false,
		},
		{
			name:    "ошибка БД",
			orderID: "order-456",
			mockSetup: func(mock sqlmock.Sqlmock, orderID string) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("confirmed", "paid", sqlmock.AnyArg(), orderID, "pending").
					WillReturnError(sql.ErrConnDone)
				mock.ExpectRollback()
			},
			expectedApplied: false,
			expectedErr:     sql.ErrConnDone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewOrderRepository(gormDB)
			tt.mockSetup(mock, tt.orderID)

			applied, err := repo.MarkPaid(context.Background(), tt.orderID)

			if tt.expectedErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedApplied, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =====================================
// Тесты MarkPaymentFailed / MarkRefunded
// =====================================

func TestOrderRepository_MarkPaymentFailed(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WithArgs("карта отклонена", "failed", sqlmock.AnyArg(), "order-123", "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	applied, err := repo.MarkPaymentFailed(context.Background(), "order-123", "карта отклонена")

	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_MarkRefunded_AlreadyRefunded(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	repo := NewOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
		WithArgs("refunded", sqlmock.AnyArg(), "order-123", "paid").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	applied, err := repo.MarkRefunded(context.Background(), "order-123")

	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =====================================
// Тесты UpdateOrderStatus
// =====================================

func TestOrderRepository_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name            string
		from            domain.OrderStatus
		to              domain.OrderStatus
		tracking        *domain.TrackingInfo
		mockSetup       func(mock sqlmock.Sqlmock)
		expectedApplied bool
	}{
		{
			name: "confirmed -> processing",
			from: domain.OrderStatusConfirmed,
			to:   domain.OrderStatusProcessing,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("processing", sqlmock.AnyArg(), "order-123", "confirmed").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedApplied: true,
		},
		{
			name:     "processing -> shipped с трек-номером",
			from:     domain.OrderStatusProcessing,
			to:       domain.OrderStatusShipped,
			tracking: &domain.TrackingInfo{Number: "TRACK-001", URL: "https://track.example.com/TRACK-001"},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("shipped", "TRACK-001", "https://track.example.com/TRACK-001", sqlmock.AnyArg(), "order-123", "processing").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedApplied: true,
		},
		{
			name: "гонка: статус уже изменён другим вызовом",
			from: domain.OrderStatusConfirmed,
			to:   domain.OrderStatusProcessing,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
					WithArgs("processing", sqlmock.AnyArg(), "order-123", "confirmed").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedApplied: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			repo := NewOrderRepository(gormDB)
			tt.mockSetup(mock)

			applied, err := repo.UpdateOrderStatus(context.Background(), "order-123", tt.from, tt.to, tt.tracking)

			require.NoError(t, err)
			assert.Equal(t, tt.expectedApplied, applied)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// =====================================
// Тесты SetPaymentRef
// =====================================

func TestOrderRepository_SetPaymentRef(t *testing.T) {
	t.Run("успешная привязка сессии", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewOrderRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
			WithArgs("cs_test_123", sqlmock.AnyArg(), "order-123", "pending").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.SetPaymentRef(context.Background(), "order-123", "cs_test_123")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("заказ уже оплачен", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		repo := NewOrderRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `orders` SET")).
			WithArgs("cs_test_456", sqlmock.AnyArg(), "order-123", "pending").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		err := repo.SetPaymentRef(context.Background(), "order-123", "cs_test_456")

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// =====================================
// Тесты конвертации Domain <-> Model
// =====================================

func TestOrderModel_RoundTrip(t *testing.T) {
	ref := "cs_test_789"
	order := &domain.Order{
		ID:            "order-uuid",
		Number:        "ORD-20260830-AB12CD",
		CustomerName:  "Иван Петров",
		CustomerEmail: "ivan@example.com",
		AddressLine:   "ул. Ленина, 1",
		City:          "Москва",
		Subtotal:      2400,
		ShippingFee:   500,
		Total:         2900,
		Currency:      "RUB",
		PaymentStatus: domain.PaymentStatusPending,
		OrderStatus:   domain.OrderStatusPending,
		PaymentRef:    &ref,
		Lines: []domain.OrderLine{
			{ID: "line-1", ProductID: "product-1", ProductName: "Кружка", UnitPrice: 1200, Quantity: 2, LineTotal: 2400},
		},
	}

	got := orderModelFromDomain(order).toDomain()

	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, order.Number, got.Number)
	assert.Equal(t, order.Total, got.Total)
	assert.Equal(t, order.PaymentStatus, got.PaymentStatus)
	require.NotNil(t, got.PaymentRef)
	assert.Equal(t, ref, *got.PaymentRef)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "order-uuid", got.Lines[0].OrderID, "OrderID позиции проставляется из заказа")
}

func TestOrderModel_TableName(t *testing.T) {
	assert.Equal(t, "orders", OrderModel{}.TableName())
	assert.Equal(t, "order_lines", OrderLineModel{}.TableName())
}

// =====================================
// Тесты isDuplicateKeyError
// =====================================

func TestIsDuplicateKeyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil ошибка", nil, false},
		{"MySQL Error 1062", errors.New("Error 1062: Duplicate entry"), true},
		{"Duplicate entry в тексте", errors.New("Duplicate entry 'ORD-20260830-7F3A2C'"), true},
		{"GORM ErrDuplicatedKey", gorm.ErrDuplicatedKey, true},
		{"обычная ошибка", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDuplicateKeyError(tt.err))
		})
	}
}
