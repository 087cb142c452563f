package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/adapter/storage"
	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// Mock Metrics
type mockMetrics struct {
	mu        sync.Mutex
	successes map[string]int
	failures  map[string][]error
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{
		successes: make(map[string]int),
		failures:  make(map[string][]error),
	}
}

func (m *mockMetrics) RecordSuccess(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes[operation]++
}

func (m *mockMetrics) RecordFailure(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[operation] = append(m.failures[operation], err)
}

// Mock StoreEventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	events []domain.StoreEvent
}

func (m *mockPublisher) Publish(event domain.StoreEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) types() []domain.StoreEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]domain.StoreEventType, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// Mock LocationResolver that is unreachable
type brokenResolver struct{}

func (brokenResolver) Resolve(context.Context, string) (*domain.Location, error) {
	return nil, errors.New("resolver unreachable")
}

// Mock LocationResolver that reports whether the writer was busy while it ran
type lockCheckingResolver struct {
	port.LocationResolver
	db      port.Database
	blocked atomic.Int32
}

func (r *lockCheckingResolver) Resolve(ctx context.Context, identifier string) (*domain.Location, error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.db.Atomic(ctx, func(context.Context, port.Repository) error { return nil })
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		r.blocked.Add(1)
	}
	return r.LocationResolver.Resolve(ctx, identifier)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	db         *storage.MemoryAdapter
	metrics    *mockMetrics
	publisher  *mockPublisher
	ledger     *AllocationService
	warehouses *WarehouseService
	products   *ProductService
	stores     *StoreService
}

func newFixture(t *testing.T) *fixture {
	db := storage.NewMemoryAdapter()
	metrics := newMockMetrics()
	publisher := &mockPublisher{}
	synchronizer := NewOccupancySynchronizer()
	logger := zap.NewNop()

	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		metrics:    metrics,
		publisher:  publisher,
		ledger:     NewAllocationService(db, synchronizer, metrics, logger),
		warehouses: NewWarehouseService(db, storage.NewStaticLocationResolver(storage.DefaultLocations), metrics, logger),
		products:   NewProductService(db, synchronizer, metrics, logger),
		stores:     NewStoreService(db, synchronizer, publisher, metrics, logger),
	}

	// deterministic, strictly increasing creation times
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var clockMu sync.Mutex
	now := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	f.warehouses.now = now
	f.products.now = now
	f.stores.now = now
	return f
}

func (f *fixture) product(name string, stock int) *domain.Product {
	f.t.Helper()
	p, err := f.products.Create(f.ctx, domain.Product{
		Name:           name,
		Price:          decimal.NewFromInt(10),
		AvailableStock: stock,
	})
	if err != nil {
		f.t.Fatalf("create product %s: %v", name, err)
	}
	return p
}

func (f *fixture) warehouse(code, location string, capacity, stock int) *domain.Warehouse {
	f.t.Helper()
	w, err := f.warehouses.Create(f.ctx, domain.WarehouseSpec{
		BusinessUnitCode: code,
		Location:         location,
		Capacity:         capacity,
		Stock:            stock,
	})
	if err != nil {
		f.t.Fatalf("create warehouse %s: %v", code, err)
	}
	return w
}

func (f *fixture) store(name string, occupancy int) *domain.Store {
	f.t.Helper()
	s, err := f.stores.Create(f.ctx, name, occupancy)
	if err != nil {
		f.t.Fatalf("create store %s: %v", name, err)
	}
	return s
}

func (f *fixture) pool(id int64) int {
	f.t.Helper()
	p, err := f.db.ProductByID(f.ctx, id)
	if err != nil || p == nil {
		f.t.Fatalf("load product %d: %v", id, err)
	}
	return p.AvailableStock
}

func (f *fixture) warehouseState(code string) *domain.Warehouse {
	f.t.Helper()
	w, err := f.db.WarehouseByCode(f.ctx, code)
	if err != nil || w == nil {
		f.t.Fatalf("load warehouse %s: %v", code, err)
	}
	return w
}

func (f *fixture) storeState(id int64) *domain.Store {
	f.t.Helper()
	s, err := f.db.StoreByID(f.ctx, id)
	if err != nil || s == nil {
		f.t.Fatalf("load store %d: %v", id, err)
	}
	return s
}

func ptr[T any](v T) *T { return &v }
