package fulfillment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/appetiteclub/fulfillment/pkg/enums/categorykind"
	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
	"github.com/appetiteclub/fulfillment/pkg/enums/station"
)

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	Published   [][]byte
	Topics      []string
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Topics = append(m.Topics, topic)
	m.Published = append(m.Published, msg)
	return nil
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}

// MockCatalogSource is a mock implementation of CatalogSource for testing
type MockCatalogSource struct {
	mu           sync.Mutex
	Entries      []CatalogEntry
	SnapshotFunc func(ctx context.Context) ([]CatalogEntry, error)
}

func NewMockCatalogSource(entries ...CatalogEntry) *MockCatalogSource {
	return &MockCatalogSource{Entries: entries}
}

func (m *MockCatalogSource) Snapshot(ctx context.Context) ([]CatalogEntry, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Entries, nil
}

func (m *MockCatalogSource) SetEntries(entries []CatalogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = entries
}

// MockOrderRepo is a map-backed mock of OrderRepo honoring the conditional
// UpdateStatus contract, so the machine and sync tests exercise the same
// conflict semantics the Mongo adapter produces.
type MockOrderRepo struct {
	mu     sync.RWMutex
	orders map[OrderID]*Order

	CreateFunc       func(ctx context.Context, order *Order) error
	GetFunc          func(ctx context.Context, id OrderID) (*Order, error)
	UpdateStatusFunc func(ctx context.Context, id OrderID, from, to string) (*Order, error)
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		orders: make(map[OrderID]*Order),
	}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order.Clone()
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id OrderID) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return order.Clone(), nil
}

func (m *MockOrderRepo) List(ctx context.Context) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		result = append(result, o.Clone())
	}
	return result, nil
}

func (m *MockOrderRepo) ListActive(ctx context.Context) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		if !o.StatusValue().Terminal() {
			result = append(result, o.Clone())
		}
	}
	return result, nil
}

func (m *MockOrderRepo) ListByStatus(ctx context.Context, status string) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*Order
	for _, o := range m.orders {
		if o.Status == status {
			result = append(result, o.Clone())
		}
	}
	return result, nil
}

func (m *MockOrderRepo) UpdateStatus(ctx context.Context, id OrderID, from, to string) (*Order, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, from, to)
	}
	return m.applyUpdateStatus(ctx, id, from, to)
}

// applyUpdateStatus is the default conditional write, callable from tests
// that override UpdateStatusFunc but still want the map-backed behavior.
func (m *MockOrderRepo) applyUpdateStatus(ctx context.Context, id OrderID, from, to string) (*Order, error) {
	if orderstatus.ByName(to) == nil {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: order %s no longer in %s", ErrConflictOnWrite, id, from)
	}

	order.Status = to
	now := time.Now()
	order.UpdatedAt = now
	switch to {
	case orderstatus.Statuses.Preparing.Code():
		order.PreparedAt = &now
	case orderstatus.Statuses.Ready.Code():
		order.ReadyAt = &now
	case orderstatus.Statuses.Completed.Code():
		order.CompletedAt = &now
	case orderstatus.Statuses.Cancelled.Code():
		order.CancelledAt = &now
	}
	return order.Clone(), nil
}

func (m *MockOrderRepo) Seed(orders ...*Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		m.orders[o.ID] = o.Clone()
	}
}

func (m *MockOrderRepo) Status(id OrderID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return ""
	}
	return order.Status
}

// MockBackend is a mock implementation of Backend for the sync layer tests.
type MockBackend struct {
	ListActiveOrdersFunc  func(ctx context.Context, filter *station.Station) ([]*Order, error)
	GetOrderFunc          func(ctx context.Context, id OrderID) (*Order, error)
	RequestTransitionFunc func(ctx context.Context, id OrderID, to orderstatus.Status, from *station.Station) (TransitionResult, error)
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) ListActiveOrders(ctx context.Context, filter *station.Station) ([]*Order, error) {
	if m.ListActiveOrdersFunc != nil {
		return m.ListActiveOrdersFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockBackend) GetOrder(ctx context.Context, id OrderID) (*Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, id)
	}
	return nil, ErrNotFound
}

func (m *MockBackend) RequestTransition(ctx context.Context, id OrderID, to orderstatus.Status, from *station.Station) (TransitionResult, error) {
	if m.RequestTransitionFunc != nil {
		return m.RequestTransitionFunc(ctx, id, to, from)
	}
	return TransitionResult{}, ErrNotFound
}

// Test fixtures shared across the package tests.

var (
	testFoodCategory     = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testBeverageCategory = uuid.MustParse("22222222-2222-2222-2222-222222222222")

	testBurgerID   = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	testPastaID    = uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	testLemonadeID = uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")
	testEspressoID = uuid.MustParse("dddddddd-dddd-dddd-dddd-dddddddddddd")
)

func testCatalogEntries() []CatalogEntry {
	return []CatalogEntry{
		{ItemID: testBurgerID, CategoryID: testFoodCategory, CategoryKind: categorykind.Kinds.Food},
		{ItemID: testPastaID, CategoryID: testFoodCategory, CategoryKind: categorykind.Kinds.Food},
		{ItemID: testLemonadeID, CategoryID: testBeverageCategory, CategoryKind: categorykind.Kinds.Beverage},
		{ItemID: testEspressoID, CategoryID: testBeverageCategory, CategoryKind: categorykind.Kinds.Beverage},
	}
}

// testRouter builds a router over a warmed classification index.
func testRouter(t interface{ Fatalf(string, ...interface{}) }) *StationRouter {
	index := NewClassificationIndex(NewMockCatalogSource(testCatalogEntries()...), time.Hour, nil)
	if err := index.Rebuild(context.Background()); err != nil {
		t.Fatalf("cannot warm classification index: %v", err)
	}
	return NewStationRouter(index)
}

func foodItem(qty int) OrderItem {
	return OrderItem{MenuItemID: testBurgerID, Name: "Burger", UnitPrice: 9.50, Quantity: qty}
}

func drinkItem(qty int) OrderItem {
	return OrderItem{MenuItemID: testLemonadeID, Name: "Lemonade", UnitPrice: 3.25, Quantity: qty}
}

func testOrder(status string, items ...OrderItem) *Order {
	order := NewOrder()
	order.CustomerName = "Walk-in"
	order.TableID = "T4"
	order.Items = items
	for _, item := range items {
		order.Subtotal += item.LineTotal()
	}
	order.Total = order.Subtotal
	order.BeforeCreate()
	order.Status = status
	return order
}
