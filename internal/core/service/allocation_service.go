package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// AllocationService is the allocation ledger. It is the only code that moves
// units between a product's pool and its allocations, for stores and
// warehouses alike, so pool + allocated stays constant for every product.
type AllocationService struct {
	db   port.Database
	sync *OccupancySynchronizer
	observer
}

func NewAllocationService(db port.Database, sync *OccupancySynchronizer, metrics port.Metrics, logger *zap.Logger) *AllocationService {
	return &AllocationService{
		db:       db,
		sync:     sync,
		observer: newObserver(metrics, logger),
	}
}

// Upsert sets the quantity of product held by the container, moving the
// difference between the product's pool and the allocation. The call is
// all-or-nothing: a capacity violation found after the move rolls back
// the pool change as well.
func (s *AllocationService) Upsert(ctx context.Context, ref domain.ContainerRef, productID int64, quantity int) (domain.AllocationView, error) {
	var view domain.AllocationView

	if quantity <= 0 {
		err := domain.Errorf(domain.ErrInvalidQuantity, "quantity must be a positive number, got %d", quantity)
		s.done(OpAllocationUpsert, err, zap.Stringer("container", ref), zap.Int64("product_id", productID))
		return view, err
	}

	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		if err := s.lockWritableContainer(ctx, tx, ref); err != nil {
			return err
		}
		product, err := requireProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		existing, err := tx.FindAllocation(ctx, ref, productID)
		if err != nil {
			return fmt.Errorf("load allocation: %w", err)
		}

		delta := quantity
		if existing != nil {
			delta = quantity - existing.Quantity
		}
		// negative delta returns units to the pool
		if delta > 0 && product.AvailableStock < delta {
			return &domain.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   delta,
				Available:   product.AvailableStock,
			}
		}

		if delta != 0 {
			product.AvailableStock -= delta
			if err := tx.UpdateProduct(ctx, *product); err != nil {
				return fmt.Errorf("update product stock: %w", err)
			}
		}

		allocation := domain.Allocation{Container: ref, ProductID: productID, Quantity: quantity}
		if err := tx.SaveAllocation(ctx, allocation); err != nil {
			return fmt.Errorf("save allocation: %w", err)
		}

		if _, err := s.sync.Recompute(ctx, tx, ref, delta); err != nil {
			return err
		}

		view = domain.NewAllocationView(allocation, product.Name)
		return nil
	})

	s.done(OpAllocationUpsert, err,
		zap.Stringer("container", ref),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
	)
	if err != nil {
		return domain.AllocationView{}, err
	}
	return view, nil
}

// Remove deletes the container's allocation of product and returns its units
// to the product's pool. A second call for the same pair fails with
// ErrAllocationNotFound.
func (s *AllocationService) Remove(ctx context.Context, ref domain.ContainerRef, productID int64) error {
	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		if err := s.lockWritableContainer(ctx, tx, ref); err != nil {
			return err
		}
		product, err := requireProduct(ctx, tx, productID)
		if err != nil {
			return err
		}

		existing, err := tx.FindAllocation(ctx, ref, productID)
		if err != nil {
			return fmt.Errorf("load allocation: %w", err)
		}
		if existing == nil {
			return domain.Errorf(domain.ErrAllocationNotFound,
				"mapping does not exist for %s and product %d", ref, productID)
		}

		product.AvailableStock += existing.Quantity
		if err := tx.UpdateProduct(ctx, *product); err != nil {
			return fmt.Errorf("update product stock: %w", err)
		}
		if err := tx.DeleteAllocation(ctx, ref, productID); err != nil {
			return fmt.Errorf("delete allocation: %w", err)
		}

		_, err = s.sync.Recompute(ctx, tx, ref, -existing.Quantity)
		return err
	})

	s.done(OpAllocationRemove, err, zap.Stringer("container", ref), zap.Int64("product_id", productID))
	return err
}

// List returns the container's allocations ordered by product name.
func (s *AllocationService) List(ctx context.Context, ref domain.ContainerRef) ([]domain.AllocationView, error) {
	if err := s.requireContainer(ctx, s.db, ref); err != nil {
		return nil, err
	}

	views, err := s.db.AllocationsByContainer(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("list allocations of %s: %w", ref, err)
	}
	if views == nil {
		views = []domain.AllocationView{}
	}
	return views, nil
}

// lockWritableContainer locks the container row and rejects archived warehouses.
func (s *AllocationService) lockWritableContainer(ctx context.Context, tx port.Repository, ref domain.ContainerRef) error {
	switch ref.Kind {
	case domain.ContainerStore:
		_, err := requireStore(ctx, tx, ref)
		return err

	case domain.ContainerWarehouse:
		warehouse, err := tx.LockWarehouse(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("load warehouse: %w", err)
		}
		if warehouse == nil {
			return domain.Errorf(domain.ErrNotFound, "warehouse with business unit code %q not found", ref.Key)
		}
		if warehouse.IsArchived() {
			return domain.Errorf(domain.ErrContainerArchived, "warehouse with business unit code %q is archived", ref.Key)
		}
		return nil
	}
	return fmt.Errorf("unknown container kind %q", ref.Kind)
}

func (s *AllocationService) requireContainer(ctx context.Context, repo port.Repository, ref domain.ContainerRef) error {
	switch ref.Kind {
	case domain.ContainerStore:
		_, err := requireStore(ctx, repo, ref)
		return err

	case domain.ContainerWarehouse:
		warehouse, err := repo.WarehouseByCode(ctx, ref.Key)
		if err != nil {
			return fmt.Errorf("load warehouse: %w", err)
		}
		if warehouse == nil {
			return domain.Errorf(domain.ErrNotFound, "warehouse with business unit code %q not found", ref.Key)
		}
		return nil
	}
	return fmt.Errorf("unknown container kind %q", ref.Kind)
}
