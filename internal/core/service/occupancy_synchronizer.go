package service

import (
	"context"
	"fmt"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// OccupancySynchronizer keeps a container's occupancy equal to the sum of its
// allocations. It only ever runs on the unit of work of the mutation that
// triggered it, so the intermediate state is never visible.
type OccupancySynchronizer struct{}

func NewOccupancySynchronizer() *OccupancySynchronizer {
	return &OccupancySynchronizer{}
}

// Recompute rewrites the container's occupancy from its allocations and
// returns the new value. delta is the change in allocated units made by the
// calling unit of work. When delta is positive and the warehouse total ends
// over capacity, it fails with a CapacityExceededError and nothing is
// written. A warehouse already over capacity after a Replace can always
// shrink.
func (s *OccupancySynchronizer) Recompute(ctx context.Context, tx port.Repository, ref domain.ContainerRef, delta int) (int, error) {
	total, _, err := tx.AllocationTotal(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("sum allocations of %s: %w", ref, err)
	}

	switch ref.Kind {
	case domain.ContainerStore:
		store, err := requireStore(ctx, tx, ref)
		if err != nil {
			return 0, err
		}
		store.Occupancy = total
		if err := tx.UpdateStore(ctx, *store); err != nil {
			return 0, fmt.Errorf("update store occupancy: %w", err)
		}

	case domain.ContainerWarehouse:
		warehouse, err := tx.LockWarehouse(ctx, ref.Key)
		if err != nil {
			return 0, fmt.Errorf("load warehouse: %w", err)
		}
		if warehouse == nil {
			return 0, domain.Errorf(domain.ErrNotFound, "warehouse %q does not exist", ref.Key)
		}
		if delta > 0 && total > warehouse.Capacity {
			return 0, &domain.CapacityExceededError{
				BusinessUnitCode: warehouse.BusinessUnitCode,
				Occupancy:        total,
				Capacity:         warehouse.Capacity,
			}
		}
		warehouse.Occupancy = total
		if err := tx.UpdateWarehouse(ctx, warehouse); err != nil {
			return 0, err
		}

	default:
		return 0, fmt.Errorf("unknown container kind %q", ref.Kind)
	}

	return total, nil
}

// ApplyStoreOccupancy sets store.Occupancy according to the store's mode:
// the supplied value while the store has no allocations, the allocation total
// otherwise. The caller persists the store.
func (s *OccupancySynchronizer) ApplyStoreOccupancy(ctx context.Context, tx port.Repository, store *domain.Store, supplied int) (domain.OccupancyMode, error) {
	total, count, err := tx.AllocationTotal(ctx, store.Ref())
	if err != nil {
		return domain.OccupancyManual, fmt.Errorf("sum allocations of %s: %w", store.Ref(), err)
	}

	mode := domain.OccupancyModeFor(count)
	if mode == domain.OccupancyDerived {
		store.Occupancy = total
	} else {
		store.Occupancy = supplied
	}
	return mode, nil
}

func requireStore(ctx context.Context, tx port.Repository, ref domain.ContainerRef) (*domain.Store, error) {
	id, err := ref.StoreID()
	if err != nil {
		return nil, err
	}
	store, err := tx.StoreByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if store == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "store with id of %d does not exist", id)
	}
	return store, nil
}

func requireProduct(ctx context.Context, tx port.Repository, id int64) (*domain.Product, error) {
	product, err := tx.ProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if product == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "product with id of %d does not exist", id)
	}
	return product, nil
}
