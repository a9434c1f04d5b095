package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/storefront/internal/domain"
)

// ProductRepository определяет доступ к каталогу для проверки корзины
// и списания остатков. Управление каталогом находится вне этого сервиса.
type ProductRepository interface {
	// GetActiveByID возвращает активный товар по ID.
	// Неактивный товар неотличим от отсутствующего.
	GetActiveByID(ctx context.Context, productID string) (*domain.Product, error)

	// GetActiveByIDs возвращает активные товары по списку ID.
	// Отсутствующие ID просто не попадают в результат.
	GetActiveByIDs(ctx context.Context, productIDs []string) (map[string]*domain.Product, error)

	// DecrementStock атомарно списывает остаток одним UPDATE с условием
	// stock >= quantity. Возвращает applied=false, если остатка не хватило
	// (конкурентная оплата успела списать раньше).
	DecrementStock(ctx context.Context, productID string, quantity int32) (applied bool, err error)

	// ClampStockToZero обнуляет положительный остаток. Вызывается, когда
	// оплаченный заказ требует больше, чем осталось: остаток не уходит
	// в минус, расхождение логируется выше.
	ClampStockToZero(ctx context.Context, productID string) (applied bool, err error)
}

// ProductModel — GORM модель для таблицы products.
type ProductModel struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Name        string    `gorm:"column:name;type:varchar(255);not null"`
	Image       string    `gorm:"column:image;type:varchar(500)"`
	Price       int64     `gorm:"column:price;not null"`
	Currency    string    `gorm:"column:currency;type:varchar(3);not null"`
	Active      bool      `gorm:"column:active;not null;index"`
	Purchasable bool      `gorm:"column:purchasable;not null"`
	TrackStock  bool      `gorm:"column:track_stock;not null"`
	Stock       int32     `gorm:"column:stock;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (ProductModel) TableName() string {
	return "products"
}

// toDomain конвертирует GORM модель товара в доменную сущность.
func (m *ProductModel) toDomain() *domain.Product {
	return &domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Image:       m.Image,
		Price:       m.Price,
		Currency:    m.Currency,
		Active:      m.Active,
		Purchasable: m.Purchasable,
		TrackStock:  m.TrackStock,
		Stock:       m.Stock,
	}
}

// productRepository — GORM реализация ProductRepository.
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository создаёт новый репозиторий каталога.
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// GetActiveByID возвращает активный товар по ID.
func (r *productRepository) GetActiveByID(ctx context.Context, productID string) (*domain.Product, error) {
	var model ProductModel

	if err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", productID, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetActiveByIDs возвращает активные товары одним запросом.
func (r *productRepository) GetActiveByIDs(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	if len(productIDs) == 0 {
		return map[string]*domain.Product{}, nil
	}

	var models []ProductModel
	if err := r.db.WithContext(ctx).
		Where("id IN ? AND active = ?", productIDs, true).
		Find(&models).Error; err != nil {
		return nil, err
	}

	products := make(map[string]*domain.Product, len(models))
	for i := range models {
		products[models[i].ID] = models[i].toDomain()
	}

	return products, nil
}

// DecrementStock атомарно списывает остаток.
// Условие stock >= quantity делает списание безопасным при гонке:
// из двух конкурентных списаний последней единицы сработает одно.
func (r *productRepository) DecrementStock(ctx context.Context, productID string, quantity int32) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ? AND track_stock = ? AND stock >= ?", productID, true, quantity).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", quantity),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}

// ClampStockToZero обнуляет положительный остаток товара.
func (r *productRepository) ClampStockToZero(ctx context.Context, productID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ? AND track_stock = ? AND stock > 0", productID, true).
		Updates(map[string]interface{}{
			"stock":      0,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected > 0, nil
}
