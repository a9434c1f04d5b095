package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/storefront/internal/domain"
)

// RewardsRepository определяет доступ к журналу баллов и кэшу баланса.
type RewardsRepository interface {
	// InsertEarned вставляет запись начисления и обновляет кэш баланса
	// в одной транзакции. Уникальный индекс (order_id, type) гарантирует
	// не больше одного начисления на заказ: при дубликате возвращает
	// applied=false без изменения баланса.
	InsertEarned(ctx context.Context, entry *domain.RewardsLedgerEntry) (applied bool, err error)

	// GetBalance возвращает кэшированный баланс покупателя.
	// Для покупателя без записей возвращает нулевой баланс.
	GetBalance(ctx context.Context, customerID string) (*domain.RewardsBalance, error)

	// ListEntries возвращает записи журнала покупателя с пагинацией,
	// новые первыми.
	ListEntries(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error)
}

// RewardsLedgerModel — GORM модель для таблицы rewards_ledger.
// Составной уникальный индекс по (order_id, type) закрепляет
// идемпотентность начисления на уровне БД.
type RewardsLedgerModel struct {
	ID          string     `gorm:"column:id;type:varchar(36);primaryKey"`
	CustomerID  string     `gorm:"column:customer_id;type:varchar(36);not null;index"`
	Points      int64      `gorm:"column:points;not null"`
	Type        string     `gorm:"column:type;type:varchar(20);not null;uniqueIndex:uniq_order_type"`
	OrderID     *string    `gorm:"column:order_id;type:varchar(36);uniqueIndex:uniq_order_type"`
	OrderNumber string     `gorm:"column:order_number;type:varchar(20)"`
	ExpiresAt   *time.Time `gorm:"column:expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (RewardsLedgerModel) TableName() string {
	return "rewards_ledger"
}

// RewardsBalanceModel — GORM модель для таблицы rewards_balances.
type RewardsBalanceModel struct {
	CustomerID     string    `gorm:"column:customer_id;type:varchar(36);primaryKey"`
	Balance        int64     `gorm:"column:balance;not null"`
	LifetimeEarned int64     `gorm:"column:lifetime_earned;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (RewardsBalanceModel) TableName() string {
	return "rewards_balances"
}

// toDomain конвертирует GORM модель записи журнала в доменную сущность.
func (m *RewardsLedgerModel) toDomain() *domain.RewardsLedgerEntry {
	return &domain.RewardsLedgerEntry{
		ID:          m.ID,
		CustomerID:  m.CustomerID,
		Points:      m.Points,
		Type:        domain.RewardsEntryType(m.Type),
		OrderID:     m.OrderID,
		OrderNumber: m.OrderNumber,
		ExpiresAt:   m.ExpiresAt,
		CreatedAt:   m.CreatedAt,
	}
}

// rewardsRepository — GORM реализация RewardsRepository.
type rewardsRepository struct {
	db *gorm.DB
}

// NewRewardsRepository создаёт новый репозиторий баллов.
func NewRewardsRepository(db *gorm.DB) RewardsRepository {
	return &rewardsRepository{db: db}
}

// InsertEarned вставляет начисление и обновляет кэш баланса транзакционно.
// Дубликат (повторная обработка того же заказа) — штатный исход,
// транзакция откатывается целиком, баланс не меняется.
func (r *rewardsRepository) InsertEarned(ctx context.Context, entry *domain.RewardsLedgerEntry) (bool, error) {
	model := &RewardsLedgerModel{
		ID:          entry.ID,
		CustomerID:  entry.CustomerID,
		Points:      entry.Points,
		Type:        string(entry.Type),
		OrderID:     entry.OrderID,
		OrderNumber: entry.OrderNumber,
		ExpiresAt:   entry.ExpiresAt,
		CreatedAt:   entry.CreatedAt,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		// Upsert кэша баланса: INSERT ... ON DUPLICATE KEY UPDATE
		return tx.Exec(
			`INSERT INTO rewards_balances (customer_id, balance, lifetime_earned, updated_at)
			 VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE
			   balance = balance + VALUES(balance),
			   lifetime_earned = lifetime_earned + VALUES(lifetime_earned),
			   updated_at = VALUES(updated_at)`,
			entry.CustomerID, entry.Points, entry.Points, time.Now(),
		).Error
	})

	if err != nil {
		if isDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// GetBalance возвращает кэшированный баланс покупателя.
func (r *rewardsRepository) GetBalance(ctx context.Context, customerID string) (*domain.RewardsBalance, error) {
	var model RewardsBalanceModel

	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Покупатель без начислений — нулевой баланс, не ошибка
			return &domain.RewardsBalance{CustomerID: customerID}, nil
		}
		return nil, err
	}

	return &domain.RewardsBalance{
		CustomerID:     model.CustomerID,
		Balance:        model.Balance,
		LifetimeEarned: model.LifetimeEarned,
		UpdatedAt:      model.UpdatedAt,
	}, nil
}

// ListEntries возвращает журнал покупателя с пагинацией.
func (r *rewardsRepository) ListEntries(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error) {
	var models []RewardsLedgerModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&RewardsLedgerModel{}).Where("customer_id = ?", customerID)

	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*domain.RewardsLedgerEntry, len(models))
	for i := range models {
		entries[i] = models[i].toDomain()
	}

	return entries, totalCount, nil
}
