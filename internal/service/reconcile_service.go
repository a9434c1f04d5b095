package service

import (
	"context"
	"errors"
	"fmt"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/repository"
	"example.com/storefront/pkg/logger"
	"example.com/storefront/pkg/metrics"
)

// Результаты обработки события для метрики payment_events_total.
const (
	resultApplied   = "applied"
	resultDuplicate = "duplicate"
	resultRejected  = "rejected"
	resultUnknown   = "unknown"
)

// ReconcileService согласует состояние заказов с событиями платёжного шлюза.
//
// Шлюз доставляет события минимум один раз и без гарантии порядка,
// поэтому вся логика построена на условных переходах в БД: побочные
// эффекты (списание остатков, баллы, письма) выполняет только тот вызов,
// который реально перевёл статус.
type ReconcileService interface {
	// HandleEvent обрабатывает событие вебхука. Подпись уже проверена.
	// Повторное событие — успех без побочных эффектов. Неизвестный тип —
	// успех без обработки (совместимость с новыми типами шлюза).
	HandleEvent(ctx context.Context, event *gateway.Event) error

	// ConfirmReturn обрабатывает возврат покупателя со страницы оплаты.
	// Статусу из редиректа не доверяем: спрашиваем шлюз и, если сессия
	// оплачена, применяем тот же переход, что и вебхук.
	ConfirmReturn(ctx context.Context, orderNumber string) (*domain.Order, error)
}

// reconcileService — реализация ReconcileService.
type reconcileService struct {
	orders        repository.OrderRepository
	products      repository.ProductRepository
	rewards       RewardsService
	notifications NotificationService
	gateway       gateway.Client
}

// NewReconcileService создаёт сервис согласования платежей.
func NewReconcileService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	rewards RewardsService,
	notifications NotificationService,
	gatewayClient gateway.Client,
) ReconcileService {
	return &reconcileService{
		orders:        orders,
		products:      products,
		rewards:       rewards,
		notifications: notifications,
		gateway:       gatewayClient,
	}
}

// HandleEvent обрабатывает событие платёжного шлюза.
func (s *reconcileService) HandleEvent(ctx context.Context, event *gateway.Event) error {
	log := logger.FromContext(ctx)

	order, err := s.findOrder(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			log.Warn().
				Str("event_id", event.ID).
				Str("event_type", event.Type).
				Str("order_id", event.OrderID).
				Msg("событие ссылается на неизвестный заказ")
			metrics.RecordPaymentEvent(event.Type, resultRejected)
			return domain.ErrOrderNotFound
		}
		return err
	}

	switch event.Type {
	case gateway.EventPaymentSucceeded, gateway.EventSessionCompleted:
		return s.applyPaid(ctx, order, event.Type)

	case gateway.EventPaymentFailed:
		return s.applyFailed(ctx, order, event)

	case gateway.EventPaymentRefunded:
		return s.applyRefunded(ctx, order, event.Type)

	default:
		// Новый тип события шлюза: подтверждаем, чтобы шлюз не ретраил
		log.Info().
			Str("event_id", event.ID).
			Str("event_type", event.Type).
			Msg("неизвестный тип события, подтверждаем без обработки")
		metrics.RecordPaymentEvent(event.Type, resultUnknown)
		return nil
	}
}

// findOrder находит заказ по ID из события или по ссылке на сессию.
func (s *reconcileService) findOrder(ctx context.Context, event *gateway.Event) (*domain.Order, error) {
	if event.OrderID != "" {
		order, err := s.orders.GetByID(ctx, event.OrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	if event.SessionID != "" {
		return s.orders.GetByPaymentRef(ctx, event.SessionID)
	}

	return nil, domain.ErrOrderNotFound
}

// applyPaid выполняет переход pending -> paid и его побочные эффекты.
//
// Побочные эффекты выполняются ровно один раз: только когда условный
// UPDATE реально перевёл статус. Их ошибки логируются, но не откатывают
// оплату — заказ оплачен, остальное чинится отдельно.
func (s *reconcileService) applyPaid(ctx context.Context, order *domain.Order, eventType string) error {
	log := logger.FromContext(ctx)

	applied, err := s.orders.MarkPaid(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("переход в paid: %w", err)
	}

	if !applied {
		// Повторная доставка события: переход уже применён
		log.Info().
			Str("order_id", order.ID).
			Str("order_number", order.Number).
			Msg("оплата уже подтверждена, повторное событие пропущено")
		metrics.RecordPaymentEvent(eventType, resultDuplicate)
		return nil
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Int64("total", order.Total).
		Msg("Оплата подтверждена")
	metrics.RecordPaymentEvent(eventType, resultApplied)

	s.decrementStock(ctx, order)

	if err := s.rewards.Award(ctx, order); err != nil {
		log.Error().Err(err).
			Str("order_id", order.ID).
			Msg("не удалось начислить баллы за заказ")
	}

	s.notifications.Dispatch(ctx, order, domain.NotificationOrderConfirmed)

	return nil
}

// decrementStock списывает остатки по позициям оплаченного заказа.
// Недостача при оверселле обнуляет остаток и логируется: оплату
// из-за склада не откатываем.
func (s *reconcileService) decrementStock(ctx context.Context, order *domain.Order) {
	log := logger.FromContext(ctx)

	for _, line := range order.Lines {
		applied, err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			log.Error().Err(err).
				Str("order_id", order.ID).
				Str("product_id", line.ProductID).
				Msg("не удалось списать остаток")
			continue
		}
		if applied {
			continue
		}

		// Остатка меньше, чем продано: обнуляем и фиксируем оверселл
		clamped, err := s.products.ClampStockToZero(ctx, line.ProductID)
		if err != nil {
			log.Error().Err(err).
				Str("order_id", order.ID).
				Str("product_id", line.ProductID).
				Msg("не удалось обнулить остаток")
			continue
		}
		if clamped {
			log.Warn().
				Str("order_id", order.ID).
				Str("product_id", line.ProductID).
				Int32("quantity", line.Quantity).
				Msg("оверселл: остаток обнулён")
		}
	}
}

// applyFailed выполняет переход pending -> failed.
func (s *reconcileService) applyFailed(ctx context.Context, order *domain.Order, event *gateway.Event) error {
	log := logger.FromContext(ctx)

	reason := event.Reason
	if reason == "" {
		reason = "оплата отклонена шлюзом"
	}

	applied, err := s.orders.MarkPaymentFailed(ctx, order.ID, reason)
	if err != nil {
		return fmt.Errorf("переход в failed: %w", err)
	}

	if !applied {
		log.Info().
			Str("order_id", order.ID).
			Msg("статус оплаты уже не pending, событие failed пропущено")
		metrics.RecordPaymentEvent(event.Type, resultDuplicate)
		return nil
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Str("reason", reason).
		Msg("Оплата отклонена")
	metrics.RecordPaymentEvent(event.Type, resultApplied)

	s.notifications.Dispatch(ctx, order, domain.NotificationPaymentFailed)

	return nil
}

// applyRefunded выполняет переход paid -> refunded.
// Сам возврат средств происходит на стороне шлюза, здесь фиксируем факт.
func (s *reconcileService) applyRefunded(ctx context.Context, order *domain.Order, eventType string) error {
	log := logger.FromContext(ctx)

	applied, err := s.orders.MarkRefunded(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("переход в refunded: %w", err)
	}

	if !applied {
		log.Info().
			Str("order_id", order.ID).
			Msg("возврат уже зафиксирован, повторное событие пропущено")
		metrics.RecordPaymentEvent(eventType, resultDuplicate)
		return nil
	}

	log.Info().
		Str("order_id", order.ID).
		Str("order_number", order.Number).
		Msg("Возврат оплаты зафиксирован")
	metrics.RecordPaymentEvent(eventType, resultApplied)

	return nil
}

// ConfirmReturn проверяет оплату при возврате покупателя со страницы шлюза.
func (s *reconcileService) ConfirmReturn(ctx context.Context, orderNumber string) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	// Вебхук мог успеть раньше редиректа — тогда делать нечего
	if order.PaymentStatus != domain.PaymentStatusPending {
		return order, nil
	}

	if order.PaymentRef == nil {
		log.Warn().
			Str("order_id", order.ID).
			Msg("возврат покупателя по заказу без сессии оплаты")
		return order, nil
	}

	session, err := s.gateway.CheckSession(ctx, *order.PaymentRef)
	if err != nil {
		// Шлюз недоступен: оставляем pending, вебхук догонит
		log.Warn().Err(err).
			Str("order_id", order.ID).
			Msg("не удалось проверить сессию при возврате покупателя")
		return order, nil
	}

	if session.PaymentPaid {
		if err := s.applyPaid(ctx, order, "client.return"); err != nil {
			return nil, err
		}
		// Перечитываем заказ с новыми статусами
		return s.orders.GetByID(ctx, order.ID)
	}

	return order, nil
}
