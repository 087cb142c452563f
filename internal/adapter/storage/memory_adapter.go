package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// MemoryAdapter is an in-process port.Database. Atomic holds a single writer
// lock, runs fn on a copy of the state and swaps the copy in on success, so a
// failed unit of work leaves nothing behind.
type MemoryAdapter struct {
	mu    sync.RWMutex
	state *memoryState
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{state: newMemoryState()}
}

func (m *MemoryAdapter) Atomic(ctx context.Context, fn func(ctx context.Context, tx port.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryAdapter) read() *memoryState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Committed states are never mutated after the swap, so reads can run on the
// snapshot without holding the lock.

func (m *MemoryAdapter) ProductByID(ctx context.Context, id int64) (*domain.Product, error) {
	return m.read().ProductByID(ctx, id)
}

func (m *MemoryAdapter) ProductByName(ctx context.Context, name string) (*domain.Product, error) {
	return m.read().ProductByName(ctx, name)
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return m.read().ListProducts(ctx)
}

func (m *MemoryAdapter) StoreByID(ctx context.Context, id int64) (*domain.Store, error) {
	return m.read().StoreByID(ctx, id)
}

func (m *MemoryAdapter) StoreByName(ctx context.Context, name string) (*domain.Store, error) {
	return m.read().StoreByName(ctx, name)
}

func (m *MemoryAdapter) ListStores(ctx context.Context) ([]domain.Store, error) {
	return m.read().ListStores(ctx)
}

func (m *MemoryAdapter) WarehouseByCode(ctx context.Context, code string) (*domain.Warehouse, error) {
	return m.read().WarehouseByCode(ctx, code)
}

func (m *MemoryAdapter) LockWarehouse(ctx context.Context, code string) (*domain.Warehouse, error) {
	return m.read().LockWarehouse(ctx, code)
}

func (m *MemoryAdapter) ListWarehouses(ctx context.Context) ([]domain.Warehouse, error) {
	return m.read().ListWarehouses(ctx)
}

func (m *MemoryAdapter) SearchWarehouses(ctx context.Context, query domain.WarehouseQuery) ([]domain.Warehouse, error) {
	return m.read().SearchWarehouses(ctx, query)
}

func (m *MemoryAdapter) FindAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) (*domain.Allocation, error) {
	return m.read().FindAllocation(ctx, ref, productID)
}

func (m *MemoryAdapter) AllocationsByContainer(ctx context.Context, ref domain.ContainerRef) ([]domain.AllocationView, error) {
	return m.read().AllocationsByContainer(ctx, ref)
}

func (m *MemoryAdapter) AllocationsByProduct(ctx context.Context, productID int64) ([]domain.Allocation, error) {
	return m.read().AllocationsByProduct(ctx, productID)
}

func (m *MemoryAdapter) AllocationTotal(ctx context.Context, ref domain.ContainerRef) (int, int, error) {
	return m.read().AllocationTotal(ctx, ref)
}

// Writes outside Atomic run as their own unit of work.

func (m *MemoryAdapter) InsertProduct(ctx context.Context, product *domain.Product) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.InsertProduct(ctx, product) })
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, product domain.Product) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.UpdateProduct(ctx, product) })
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id int64) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.DeleteProduct(ctx, id) })
}

func (m *MemoryAdapter) InsertStore(ctx context.Context, store *domain.Store) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.InsertStore(ctx, store) })
}

func (m *MemoryAdapter) UpdateStore(ctx context.Context, store domain.Store) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.UpdateStore(ctx, store) })
}

func (m *MemoryAdapter) DeleteStore(ctx context.Context, id int64) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.DeleteStore(ctx, id) })
}

func (m *MemoryAdapter) InsertWarehouse(ctx context.Context, warehouse *domain.Warehouse) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.InsertWarehouse(ctx, warehouse) })
}

func (m *MemoryAdapter) UpdateWarehouse(ctx context.Context, warehouse *domain.Warehouse) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.UpdateWarehouse(ctx, warehouse) })
}

func (m *MemoryAdapter) SaveAllocation(ctx context.Context, allocation domain.Allocation) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error { return tx.SaveAllocation(ctx, allocation) })
}

func (m *MemoryAdapter) DeleteAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) error {
	return m.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		return tx.DeleteAllocation(ctx, ref, productID)
	})
}

type allocationKey struct {
	container domain.ContainerRef
	productID int64
}

// memoryState is one version of the data. It implements port.Repository
// without locking; MemoryAdapter serializes access to it.
type memoryState struct {
	products    map[int64]domain.Product
	stores      map[int64]domain.Store
	warehouses  map[string]domain.Warehouse
	allocations map[allocationKey]int

	nextProductID   int64
	nextStoreID     int64
	nextWarehouseID int64
}

func newMemoryState() *memoryState {
	return &memoryState{
		products:    map[int64]domain.Product{},
		stores:      map[int64]domain.Store{},
		warehouses:  map[string]domain.Warehouse{},
		allocations: map[allocationKey]int{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		products:        make(map[int64]domain.Product, len(s.products)),
		stores:          make(map[int64]domain.Store, len(s.stores)),
		warehouses:      make(map[string]domain.Warehouse, len(s.warehouses)),
		allocations:     make(map[allocationKey]int, len(s.allocations)),
		nextProductID:   s.nextProductID,
		nextStoreID:     s.nextStoreID,
		nextWarehouseID: s.nextWarehouseID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.stores {
		c.stores[k] = v
	}
	for k, v := range s.warehouses {
		c.warehouses[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	return c
}

func (s *memoryState) InsertProduct(_ context.Context, product *domain.Product) error {
	s.nextProductID++
	product.ID = s.nextProductID
	s.products[product.ID] = *product
	return nil
}

func (s *memoryState) ProductByID(_ context.Context, id int64) (*domain.Product, error) {
	product, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &product, nil
}

func (s *memoryState) ProductByName(_ context.Context, name string) (*domain.Product, error) {
	for _, product := range s.products {
		if product.Name == name {
			return &product, nil
		}
	}
	return nil, nil
}

func (s *memoryState) UpdateProduct(_ context.Context, product domain.Product) error {
	if _, ok := s.products[product.ID]; ok {
		s.products[product.ID] = product
	}
	return nil
}

func (s *memoryState) DeleteProduct(_ context.Context, id int64) error {
	delete(s.products, id)
	return nil
}

func (s *memoryState) ListProducts(context.Context) ([]domain.Product, error) {
	products := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		products = append(products, product)
	}
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
	return products, nil
}

func (s *memoryState) InsertStore(_ context.Context, store *domain.Store) error {
	s.nextStoreID++
	store.ID = s.nextStoreID
	s.stores[store.ID] = *store
	return nil
}

func (s *memoryState) StoreByID(_ context.Context, id int64) (*domain.Store, error) {
	store, ok := s.stores[id]
	if !ok {
		return nil, nil
	}
	return &store, nil
}

func (s *memoryState) StoreByName(_ context.Context, name string) (*domain.Store, error) {
	for _, store := range s.stores {
		if store.Name == name {
			return &store, nil
		}
	}
	return nil, nil
}

func (s *memoryState) UpdateStore(_ context.Context, store domain.Store) error {
	if _, ok := s.stores[store.ID]; ok {
		s.stores[store.ID] = store
	}
	return nil
}

func (s *memoryState) DeleteStore(_ context.Context, id int64) error {
	delete(s.stores, id)
	return nil
}

func (s *memoryState) ListStores(context.Context) ([]domain.Store, error) {
	stores := make([]domain.Store, 0, len(s.stores))
	for _, store := range s.stores {
		stores = append(stores, store)
	}
	sort.Slice(stores, func(i, j int) bool {
		if stores[i].Name != stores[j].Name {
			return stores[i].Name < stores[j].Name
		}
		return stores[i].ID < stores[j].ID
	})
	return stores, nil
}

func (s *memoryState) InsertWarehouse(_ context.Context, warehouse *domain.Warehouse) error {
	s.nextWarehouseID++
	warehouse.ID = s.nextWarehouseID
	s.warehouses[warehouse.BusinessUnitCode] = *warehouse
	return nil
}

func (s *memoryState) WarehouseByCode(_ context.Context, code string) (*domain.Warehouse, error) {
	warehouse, ok := s.warehouses[code]
	if !ok {
		return nil, nil
	}
	return &warehouse, nil
}

// LockWarehouse is a plain read: the writer lock already excludes others.
func (s *memoryState) LockWarehouse(ctx context.Context, code string) (*domain.Warehouse, error) {
	return s.WarehouseByCode(ctx, code)
}

func (s *memoryState) UpdateWarehouse(_ context.Context, warehouse *domain.Warehouse) error {
	current, ok := s.warehouses[warehouse.BusinessUnitCode]
	if !ok || current.Version != warehouse.Version {
		return &domain.ConcurrentModificationError{
			BusinessUnitCode: warehouse.BusinessUnitCode,
			Expected:         warehouse.Version,
			Actual:           current.Version,
		}
	}
	warehouse.Version++
	s.warehouses[warehouse.BusinessUnitCode] = *warehouse
	return nil
}

func (s *memoryState) ListWarehouses(context.Context) ([]domain.Warehouse, error) {
	warehouses := make([]domain.Warehouse, 0, len(s.warehouses))
	for _, warehouse := range s.warehouses {
		warehouses = append(warehouses, warehouse)
	}
	sort.Slice(warehouses, func(i, j int) bool { return warehouses[i].ID < warehouses[j].ID })
	return warehouses, nil
}

func (s *memoryState) SearchWarehouses(ctx context.Context, query domain.WarehouseQuery) ([]domain.Warehouse, error) {
	all, _ := s.ListWarehouses(ctx)

	matched := make([]domain.Warehouse, 0, len(all))
	for _, w := range all {
		switch {
		case w.IsArchived():
		case query.Location != nil && w.Location != *query.Location:
		case query.MinCapacity != nil && w.Capacity < *query.MinCapacity:
		case query.MaxCapacity != nil && w.Capacity > *query.MaxCapacity:
		default:
			matched = append(matched, w)
		}
	}

	// all is in insertion order, so a stable sort keeps ties in that order
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if query.SortOrder == domain.SortDesc {
			a, b = b, a
		}
		if query.SortBy == domain.SortByCapacity {
			return a.Capacity < b.Capacity
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	offset := query.Offset()
	if offset >= len(matched) {
		return []domain.Warehouse{}, nil
	}
	end := offset + query.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (s *memoryState) FindAllocation(_ context.Context, ref domain.ContainerRef, productID int64) (*domain.Allocation, error) {
	quantity, ok := s.allocations[allocationKey{ref, productID}]
	if !ok {
		return nil, nil
	}
	return &domain.Allocation{Container: ref, ProductID: productID, Quantity: quantity}, nil
}

func (s *memoryState) SaveAllocation(_ context.Context, allocation domain.Allocation) error {
	s.allocations[allocationKey{allocation.Container, allocation.ProductID}] = allocation.Quantity
	return nil
}

func (s *memoryState) DeleteAllocation(_ context.Context, ref domain.ContainerRef, productID int64) error {
	delete(s.allocations, allocationKey{ref, productID})
	return nil
}

func (s *memoryState) AllocationsByContainer(_ context.Context, ref domain.ContainerRef) ([]domain.AllocationView, error) {
	views := []domain.AllocationView{}
	for key, quantity := range s.allocations {
		if key.container != ref {
			continue
		}
		allocation := domain.Allocation{Container: ref, ProductID: key.productID, Quantity: quantity}
		views = append(views, domain.NewAllocationView(allocation, s.products[key.productID].Name))
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].ProductName != views[j].ProductName {
			return views[i].ProductName < views[j].ProductName
		}
		return views[i].ProductID < views[j].ProductID
	})
	return views, nil
}

func (s *memoryState) AllocationsByProduct(_ context.Context, productID int64) ([]domain.Allocation, error) {
	allocations := []domain.Allocation{}
	for key, quantity := range s.allocations {
		if key.productID == productID {
			allocations = append(allocations, domain.Allocation{Container: key.container, ProductID: productID, Quantity: quantity})
		}
	}
	sort.Slice(allocations, func(i, j int) bool {
		return allocations[i].Container.String() < allocations[j].Container.String()
	})
	return allocations, nil
}

func (s *memoryState) AllocationTotal(_ context.Context, ref domain.ContainerRef) (int, int, error) {
	var total, count int
	for key, quantity := range s.allocations {
		if key.container == ref {
			total += quantity
			count++
		}
	}
	return total, count, nil
}
