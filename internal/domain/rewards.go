package domain

import "time"

// RewardsEntryType — тип записи в журнале баллов.
type RewardsEntryType string

const (
	// RewardsEarned — начисление за оплаченный заказ.
	RewardsEarned RewardsEntryType = "earned"

	// RewardsRedeemed — списание при использовании баллов.
	RewardsRedeemed RewardsEntryType = "redeemed"
)

// rewardsExpiry — срок жизни начисленных баллов.
const rewardsExpiry = 365 * 24 * time.Hour

// RewardsLedgerEntry — запись append-only журнала баллов.
// Инвариант: ровно одна запись earned на заказ (уникальный индекс
// по (order_id, type) на стороне хранилища).
type RewardsLedgerEntry struct {
	ID          string
	CustomerID  string
	Points      int64 // Знаковая дельта: earned > 0, redeemed < 0
	Type        RewardsEntryType
	OrderID     *string // Заказ-источник (nil для ручных операций)
	OrderNumber string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// NewEarnedEntry создаёт запись начисления за оплаченный заказ
// со сроком жизни один год.
func NewEarnedEntry(id, customerID, orderID, orderNumber string, points int64, now time.Time) *RewardsLedgerEntry {
	expires := now.Add(rewardsExpiry)
	return &RewardsLedgerEntry{
		ID:          id,
		CustomerID:  customerID,
		Points:      points,
		Type:        RewardsEarned,
		OrderID:     &orderID,
		OrderNumber: orderNumber,
		ExpiresAt:   &expires,
		CreatedAt:   now,
	}
}

// RewardsBalance — кэшированный агрегат баллов покупателя.
// Инвариант: Balance равен сумме записей журнала этого покупателя.
type RewardsBalance struct {
	CustomerID     string
	Balance        int64
	LifetimeEarned int64
	UpdatedAt      time.Time
}

// PointsForTotal возвращает баллы за заказ: floor суммы в целых
// единицах валюты. total — в минимальных единицах.
func PointsForTotal(total int64) int64 {
	if total < 0 {
		return 0
	}
	return total / 100
}
