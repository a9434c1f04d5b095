package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/logger"
)

// RewardsService начисляет и отдаёт бонусные баллы.
type RewardsService interface {
	// Award начисляет баллы за оплаченный заказ: floor суммы в целых
	// единицах валюты. Идемпотентно: повторный вызов для того же заказа —
	// no-op (уникальный индекс журнала). Гостевые заказы и нулевые
	// начисления пропускаются.
	Award(ctx context.Context, order *domain.Order) error

	// Balance возвращает баланс баллов покупателя.
	Balance(ctx context.Context, customerID string) (*domain.RewardsBalance, error)

	// History возвращает журнал операций покупателя.
	History(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error)
}

// rewardsService — реализация RewardsService.
type rewardsService struct {
	rewards repository.RewardsRepository
}

// NewRewardsService создаёт сервис бонусных баллов.
func NewRewardsService(rewards repository.RewardsRepository) RewardsService {
	return &rewardsService{rewards: rewards}
}

// Award начисляет баллы за оплаченный заказ.
func (s *rewardsService) Award(ctx context.Context, order *domain.Order) error {
	log := logger.FromContext(ctx)

	if order.CustomerID == nil {
		log.Debug().Str("order_id", order.ID).Msg("гостевой заказ, баллы не начисляются")
		return nil
	}

	points := domain.PointsForTotal(order.Total)
	if points == 0 {
		return nil
	}

	entry := domain.NewEarnedEntry(
		uuid.New().String(),
		*order.CustomerID,
		order.ID,
		order.Number,
		points,
		time.Now(),
	)

	applied, err := s.rewards.InsertEarned(ctx, entry)
	if err != nil {
		return err
	}

	if !applied {
		log.Info().
			Str("order_id", order.ID).
			Str("customer_id", *order.CustomerID).
			Msg("баллы за заказ уже начислены, пропускаем")
		return nil
	}

	log.Info().
		Str("order_id", order.ID).
		Str("customer_id", *order.CustomerID).
		Int64("points", points).
		Msg("Баллы начислены")

	return nil
}

// Balance возвращает баланс баллов покупателя.
func (s *rewardsService) Balance(ctx context.Context, customerID string) (*domain.RewardsBalance, error) {
	return s.rewards.GetBalance(ctx, customerID)
}

// History возвращает журнал операций покупателя.
func (s *rewardsService) History(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error) {
	return s.rewards.ListEntries(ctx, customerID, offset, limit)
}
