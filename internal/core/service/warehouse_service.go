package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

// WarehouseService manages the warehouse lifecycle: create, replace and the
// one-way archive transition. Every write is a version compare-and-swap;
// conflicts surface as ErrConcurrentModification and are never retried here.
type WarehouseService struct {
	db        port.Database
	locations port.LocationResolver
	now       func() time.Time
	observer
}

func NewWarehouseService(db port.Database, locations port.LocationResolver, metrics port.Metrics, logger *zap.Logger) *WarehouseService {
	return &WarehouseService{
		db:        db,
		locations: locations,
		now:       func() time.Time { return time.Now().UTC() },
		observer:  newObserver(metrics, logger),
	}
}

// Create registers a new active warehouse with occupancy set to spec.Stock.
func (s *WarehouseService) Create(ctx context.Context, spec domain.WarehouseSpec) (*domain.Warehouse, error) {
	var created *domain.Warehouse

	var placement error
	err := validateSpec(spec)
	if err == nil {
		placement, err = s.checkPlacement(ctx, spec)
	}
	if err == nil {
		err = s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
			existing, err := tx.WarehouseByCode(ctx, spec.BusinessUnitCode)
			if err != nil {
				return fmt.Errorf("load warehouse: %w", err)
			}
			if existing != nil {
				return domain.Errorf(domain.ErrDuplicateCode,
					"warehouse with business unit code %q already exists", spec.BusinessUnitCode)
			}

			if placement != nil {
				return placement
			}

			warehouse := &domain.Warehouse{
				BusinessUnitCode: spec.BusinessUnitCode,
				Location:         spec.Location,
				Capacity:         spec.Capacity,
				Occupancy:        spec.Stock,
				CreatedAt:        s.now(),
			}
			if err := tx.InsertWarehouse(ctx, warehouse); err != nil {
				return fmt.Errorf("insert warehouse: %w", err)
			}
			created = warehouse
			return nil
		})
	}

	s.done(OpWarehouseCreate, err,
		zap.String("business_unit_code", spec.BusinessUnitCode),
		zap.String("location", spec.Location),
		zap.Int("capacity", spec.Capacity),
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Replace overwrites location, capacity and occupancy of an active warehouse.
// The business unit code identifies the warehouse and never changes. When
// expectedVersion is set it must match the stored version.
func (s *WarehouseService) Replace(ctx context.Context, spec domain.WarehouseSpec, expectedVersion *int64) (*domain.Warehouse, error) {
	var replaced *domain.Warehouse

	placement, err := s.checkPlacement(ctx, spec)
	if err == nil {
		err = s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
			warehouse, err := s.loadForWrite(ctx, tx, spec.BusinessUnitCode, expectedVersion)
			if err != nil {
				return err
			}
			if warehouse.IsArchived() {
				return domain.Errorf(domain.ErrAlreadyArchived,
					"warehouse with business unit code %q is archived and cannot be replaced", spec.BusinessUnitCode)
			}

			if err := validateSpec(spec); err != nil {
				return err
			}
			if placement != nil {
				return placement
			}

			warehouse.Location = spec.Location
			warehouse.Capacity = spec.Capacity
			warehouse.Occupancy = spec.Stock
			if err := tx.UpdateWarehouse(ctx, warehouse); err != nil {
				return err
			}
			replaced = warehouse
			return nil
		})
	}

	s.done(OpWarehouseReplace, err,
		zap.String("business_unit_code", spec.BusinessUnitCode),
		zap.String("location", spec.Location),
		zap.Int("capacity", spec.Capacity),
	)
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// Archive moves an active warehouse to the terminal archived state.
func (s *WarehouseService) Archive(ctx context.Context, code string, expectedVersion *int64) (*domain.Warehouse, error) {
	var archived *domain.Warehouse

	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		warehouse, err := s.loadForWrite(ctx, tx, code, expectedVersion)
		if err != nil {
			return err
		}
		if warehouse.IsArchived() {
			return domain.Errorf(domain.ErrAlreadyArchived,
				"warehouse with business unit code %q is already archived", code)
		}

		now := s.now()
		warehouse.ArchivedAt = &now
		if err := tx.UpdateWarehouse(ctx, warehouse); err != nil {
			return err
		}
		archived = warehouse
		return nil
	})

	s.done(OpWarehouseArchive, err, zap.String("business_unit_code", code))
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// Get returns a warehouse by business unit code, archived or not.
func (s *WarehouseService) Get(ctx context.Context, code string) (*domain.Warehouse, error) {
	warehouse, err := s.db.WarehouseByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load warehouse: %w", err)
	}
	if warehouse == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "warehouse with business unit code %q not found", code)
	}
	return warehouse, nil
}

// List returns every warehouse in insertion order.
func (s *WarehouseService) List(ctx context.Context) ([]domain.Warehouse, error) {
	warehouses, err := s.db.ListWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list warehouses: %w", err)
	}
	return warehouses, nil
}

func (s *WarehouseService) loadForWrite(ctx context.Context, tx port.Repository, code string, expectedVersion *int64) (*domain.Warehouse, error) {
	warehouse, err := tx.WarehouseByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load warehouse: %w", err)
	}
	if warehouse == nil {
		return nil, domain.Errorf(domain.ErrNotFound, "warehouse with business unit code %q does not exist", code)
	}
	if expectedVersion != nil && *expectedVersion != warehouse.Version {
		return nil, &domain.ConcurrentModificationError{
			BusinessUnitCode: code,
			Expected:         *expectedVersion,
			Actual:           warehouse.Version,
		}
	}
	return warehouse, nil
}

// checkPlacement resolves the spec's location outside any unit of work. A
// rejection comes back as verdict for the caller to apply in its own error
// order; err is a resolver failure. MinCapacity is not checked.
func (s *WarehouseService) checkPlacement(ctx context.Context, spec domain.WarehouseSpec) (verdict error, err error) {
	if strings.TrimSpace(spec.Location) == "" {
		return domain.Errorf(domain.ErrInvalidLocation, "location is required"), nil
	}
	location, err := s.locations.Resolve(ctx, spec.Location)
	if err != nil {
		return nil, fmt.Errorf("resolve location %q: %w", spec.Location, err)
	}
	if location == nil {
		return domain.Errorf(domain.ErrInvalidLocation, "warehouse location %q is not valid", spec.Location), nil
	}
	if spec.Capacity <= 0 {
		return domain.Errorf(domain.ErrCapacityOutOfRange, "capacity must be a positive number, got %d", spec.Capacity), nil
	}
	if spec.Capacity > location.MaxCapacity {
		return &domain.CapacityOutOfRangeError{
			Location:    location.Identifier,
			Capacity:    spec.Capacity,
			MaxCapacity: location.MaxCapacity,
		}, nil
	}
	if spec.Stock > spec.Capacity {
		return &domain.StockExceedsCapacityError{Stock: spec.Stock, Capacity: spec.Capacity}, nil
	}
	return nil, nil
}

// validateSpec covers the checks that need no lookups.
func validateSpec(spec domain.WarehouseSpec) error {
	if strings.TrimSpace(spec.BusinessUnitCode) == "" {
		return domain.Errorf(domain.ErrInvalidWarehouse, "business unit code is required")
	}
	if spec.Stock < 0 {
		return domain.Errorf(domain.ErrInvalidQuantity, "stock must not be negative, got %d", spec.Stock)
	}
	return nil
}
