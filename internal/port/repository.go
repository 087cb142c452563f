package port

import (
	"context"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

// Repository is the persistence boundary for products, containers and
// allocations. Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	// InsertProduct persists a new product and assigns its ID
	InsertProduct(ctx context.Context, product *domain.Product) error

	// ProductByID loads a product, locking its row inside a unit of work
	ProductByID(ctx context.Context, id int64) (*domain.Product, error)

	ProductByName(ctx context.Context, name string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error

	// ListProducts returns all products ordered by name
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// InsertStore persists a new store and assigns its ID
	InsertStore(ctx context.Context, store *domain.Store) error

	// StoreByID loads a store, locking its row inside a unit of work
	StoreByID(ctx context.Context, id int64) (*domain.Store, error)

	StoreByName(ctx context.Context, name string) (*domain.Store, error)
	UpdateStore(ctx context.Context, store domain.Store) error
	DeleteStore(ctx context.Context, id int64) error

	// ListStores returns all stores ordered by name
	ListStores(ctx context.Context) ([]domain.Store, error)

	// InsertWarehouse persists a new warehouse and assigns its ID
	InsertWarehouse(ctx context.Context, warehouse *domain.Warehouse) error

	// WarehouseByCode reads a warehouse without locking it
	WarehouseByCode(ctx context.Context, code string) (*domain.Warehouse, error)

	// LockWarehouse reads a warehouse and holds its row until the unit of work ends
	LockWarehouse(ctx context.Context, code string) (*domain.Warehouse, error)

	// UpdateWarehouse writes the warehouse only if the stored version still
	// equals warehouse.Version, then advances the version. A mismatch returns
	// domain.ErrConcurrentModification.
	UpdateWarehouse(ctx context.Context, warehouse *domain.Warehouse) error

	// ListWarehouses returns all warehouses, archived included, in insertion order
	ListWarehouses(ctx context.Context) ([]domain.Warehouse, error)

	// SearchWarehouses runs a validated query over active warehouses
	SearchWarehouses(ctx context.Context, query domain.WarehouseQuery) ([]domain.Warehouse, error)

	FindAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) (*domain.Allocation, error)

	// SaveAllocation inserts or updates the (container, product) allocation
	SaveAllocation(ctx context.Context, allocation domain.Allocation) error

	DeleteAllocation(ctx context.Context, ref domain.ContainerRef, productID int64) error

	// AllocationsByContainer returns the container's allocations ordered by product name
	AllocationsByContainer(ctx context.Context, ref domain.ContainerRef) ([]domain.AllocationView, error)

	AllocationsByProduct(ctx context.Context, productID int64) ([]domain.Allocation, error)

	// AllocationTotal sums the container's allocation quantities and counts its rows
	AllocationTotal(ctx context.Context, ref domain.ContainerRef) (total int, count int, err error)
}

// Database is a Repository that can run a group of operations as one atomic unit.
type Database interface {
	Repository

	// Atomic runs fn in a single unit of work. Every write made through tx
	// commits together when fn returns nil and is discarded otherwise.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
