package service

import (
	"context"
	"sync"
	"time"

	"example.com/storefront/internal/domain"
	"example.com/storefront/internal/gateway"
	"example.com/storefront/pkg/outbox"
)

// =============================================================================
// Мок репозитория заказов
// =============================================================================

// mockOrderRepository — стейтфул мок, эмулирующий условные UPDATE-ы БД.
// Потокобезопасен для тестов конкурентной обработки событий.
type mockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	byRef  map[string]string // payment_ref -> order_id

	createErr error
	getErr    error
	updateErr error
}

func newMockOrderRepo() *mockOrderRepository {
	return &mockOrderRepository{
		orders: make(map[string]*domain.Order),
		byRef:  make(map[string]string),
	}
}

func (m *mockOrderRepository) add(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	if order.PaymentRef != nil {
		m.byRef[*order.PaymentRef] = order.ID
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *mockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if o, ok := m.orders[orderID]; ok {
		copy := *o
		return &copy, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, o := range m.orders {
		if o.Number == number {
			copy := *o
			return &copy, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderRepository) GetByPaymentRef(ctx context.Context, paymentRef string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byRef[paymentRef]; ok {
		copy := *m.orders[id]
		return &copy, nil
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockOrderRepository) ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Order
	for _, o := range m.orders {
		if o.CustomerID != nil && *o.CustomerID == customerID {
			copy := *o
			result = append(result, &copy)
		}
	}
	return result, int64(len(result)), nil
}

func (m *mockOrderRepository) SetPaymentRef(ctx context.Context, orderID, paymentRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending {
		return domain.ErrInvalidTransition
	}
	o.PaymentRef = &paymentRef
	m.byRef[paymentRef] = orderID
	return nil
}

// MarkPaid эмулирует условный UPDATE: срабатывает ровно один раз.
func (m *mockOrderRepository) MarkPaid(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusPaid
	o.OrderStatus = domain.OrderStatusConfirmed
	return true, nil
}

func (m *mockOrderRepository) MarkPaymentFailed(ctx context.Context, orderID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusFailed
	return true, nil
}

func (m *mockOrderRepository) MarkRefunded(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.PaymentStatus != domain.PaymentStatusPaid {
		return false, nil
	}
	o.PaymentStatus = domain.PaymentStatusRefunded
	return true, nil
}

func (m *mockOrderRepository) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, tracking *domain.TrackingInfo) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	o, ok := m.orders[orderID]
	if !ok || o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	if tracking != nil {
		if tracking.Number != "" {
			o.TrackingNumber = &tracking.Number
		}
		if tracking.URL != "" {
			o.TrackingURL = &tracking.URL
		}
		if tracking.AdminNotes != "" {
			o.AdminNotes = &tracking.AdminNotes
		}
	}
	return true, nil
}

// =============================================================================
// Мок репозитория каталога
// =============================================================================

type mockProductRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product

	getErr       error
	decrementErr error

	decrements map[string]int32 // сколько раз и на сколько списывали
}

func newMockProductRepo(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{
		products:   make(map[string]*domain.Product),
		decrements: make(map[string]int32),
	}
	for _, p := range products {
		copy := *p
		m.products[p.ID] = &copy
	}
	return m
}

func (m *mockProductRepository) GetActiveByID(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if p, ok := m.products[productID]; ok && p.Active {
		copy := *p
		return &copy, nil
	}
	return nil, domain.ErrProductNotFound
}

func (m *mockProductRepository) GetActiveByIDs(ctx context.Context, productIDs []string) (map[string]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	result := make(map[string]*domain.Product)
	for _, id := range productIDs {
		if p, ok := m.products[id]; ok && p.Active {
			copy := *p
			result[id] = &copy
		}
	}
	return result, nil
}

func (m *mockProductRepository) DecrementStock(ctx context.Context, productID string, quantity int32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.decrementErr != nil {
		return false, m.decrementErr
	}
	p, ok := m.products[productID]
	if !ok || !p.TrackStock || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	m.decrements[productID] += quantity
	return true, nil
}

func (m *mockProductRepository) ClampStockToZero(ctx context.Context, productID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok || !p.TrackStock || p.Stock <= 0 {
		return false, nil
	}
	p.Stock = 0
	return true, nil
}

func (m *mockProductRepository) stock(productID string) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

// =============================================================================
// Мок репозитория баллов
// =============================================================================

type mockRewardsRepository struct {
	mu      sync.Mutex
	byOrder map[string]*domain.RewardsLedgerEntry // эмулирует UNIQUE (order_id, type)
	balance map[string]int64

	insertErr error
}

func newMockRewardsRepo() *mockRewardsRepository {
	return &mockRewardsRepository{
		byOrder: make(map[string]*domain.RewardsLedgerEntry),
		balance: make(map[string]int64),
	}
}

func (m *mockRewardsRepository) InsertEarned(ctx context.Context, entry *domain.RewardsLedgerEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	key := *entry.OrderID + ":" + string(entry.Type)
	if _, exists := m.byOrder[key]; exists {
		return false, nil
	}
	copy := *entry
	m.byOrder[key] = &copy
	m.balance[entry.CustomerID] += entry.Points
	return true, nil
}

func (m *mockRewardsRepository) GetBalance(ctx context.Context, customerID string) (*domain.RewardsBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.RewardsBalance{
		CustomerID: customerID,
		Balance:    m.balance[customerID],
	}, nil
}

func (m *mockRewardsRepository) ListEntries(ctx context.Context, customerID string, offset, limit int) ([]*domain.RewardsLedgerEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.RewardsLedgerEntry
	for _, e := range m.byOrder {
		if e.CustomerID == customerID {
			copy := *e
			result = append(result, &copy)
		}
	}
	return result, int64(len(result)), nil
}

// =============================================================================
// Мок репозитория уведомлений
// =============================================================================

type mockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*domain.Notification

	createErr error
}

func (m *mockNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copy := *n
	m.notifications = append(m.notifications, &copy)
	return nil
}

func (m *mockNotificationRepository) ListByCustomerID(ctx context.Context, customerID string, offset, limit int) ([]*domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Notification
	var unread int64
	for _, n := range m.notifications {
		if n.CustomerID == customerID {
			copy := *n
			result = append(result, &copy)
			if !n.Read {
				unread++
			}
		}
	}
	return result, unread, nil
}

func (m *mockNotificationRepository) MarkRead(ctx context.Context, customerID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.ID == notificationID && n.CustomerID == customerID {
			n.Read = true
			return nil
		}
	}
	return domain.ErrNotificationNotFound
}

func (m *mockNotificationRepository) MarkAllRead(ctx context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notifications {
		if n.CustomerID == customerID {
			n.Read = true
		}
	}
	return nil
}

func (m *mockNotificationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// =============================================================================
// Мок outbox
// =============================================================================

type mockOutboxRepository struct {
	mu      sync.Mutex
	records []*outbox.Outbox

	createErr error
}

func (m *mockOutboxRepository) Create(ctx context.Context, record *outbox.Outbox) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*outbox.Outbox, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, nil
}

func (m *mockOutboxRepository) MarkProcessed(ctx context.Context, id string) error { return nil }

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	return nil
}
func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockOutboxRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// =============================================================================
// Мок клиента платёжного шлюза
// =============================================================================

type mockGatewayClient struct {
	mu sync.Mutex

	session    *gateway.CheckoutSession
	createErr  error
	checkErr   error
	createdReq *gateway.CheckoutRequest
	checkCalls int
}

func (m *mockGatewayClient) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdReq = req
	return m.session, nil
}

func (m *mockGatewayClient) CheckSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkCalls++
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.session, nil
}
