package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

type nopPublisher struct{}

func (nopPublisher) Publish(domain.StoreEvent) {}

// StoreService manages stores. Committed mutations are published to the
// legacy store system; publishing never fails the operation.
type StoreService struct {
	db        port.Database
	sync      *OccupancySynchronizer
	publisher port.StoreEventPublisher
	now       func() time.Time
	observer
}

func NewStoreService(db port.Database, sync *OccupancySynchronizer, publisher port.StoreEventPublisher, metrics port.Metrics, logger *zap.Logger) *StoreService {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &StoreService{
		db:        db,
		sync:      sync,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		observer:  newObserver(metrics, logger),
	}
}

// Create adds a store in manual occupancy mode with the supplied occupancy.
func (s *StoreService) Create(ctx context.Context, name string, occupancy int) (*domain.Store, error) {
	store := domain.Store{Name: strings.TrimSpace(name), Occupancy: occupancy}

	err := store.Validate()
	if err == nil {
		err = s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
			if err := s.ensureNameFree(ctx, tx, store.Name, 0); err != nil {
				return err
			}
			store.CreatedAt = s.now()
			store.UpdatedAt = store.CreatedAt
			if err := tx.InsertStore(ctx, &store); err != nil {
				return fmt.Errorf("insert store: %w", err)
			}
			return nil
		})
	}

	s.done(OpStoreCreate, err, zap.String("name", store.Name), zap.Int("occupancy", occupancy))
	if err != nil {
		return nil, err
	}
	s.publish(domain.StoreCreated, store)
	return &store, nil
}

func (s *StoreService) Get(ctx context.Context, id int64) (*domain.Store, error) {
	return requireStore(ctx, s.db, domain.StoreRef(id))
}

func (s *StoreService) List(ctx context.Context) ([]domain.Store, error) {
	stores, err := s.db.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// Update replaces the store's name and, while the store holds no
// allocations, its occupancy. Once allocations exist the supplied occupancy
// is ignored and the derived total is kept.
func (s *StoreService) Update(ctx context.Context, id int64, name string, occupancy int) (*domain.Store, error) {
	return s.modify(ctx, id, name, &occupancy)
}

// Patch renames the store and re-synchronizes its occupancy.
func (s *StoreService) Patch(ctx context.Context, id int64, name string) (*domain.Store, error) {
	return s.modify(ctx, id, name, nil)
}

func (s *StoreService) modify(ctx context.Context, id int64, name string, occupancy *int) (*domain.Store, error) {
	var (
		updated *domain.Store
		mode    domain.OccupancyMode
	)
	name = strings.TrimSpace(name)

	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		store, err := requireStore(ctx, tx, domain.StoreRef(id))
		if err != nil {
			return err
		}
		if err := s.ensureNameFree(ctx, tx, name, id); err != nil {
			return err
		}

		store.Name = name
		supplied := store.Occupancy
		if occupancy != nil {
			supplied = *occupancy
		}
		mode, err = s.sync.ApplyStoreOccupancy(ctx, tx, store, supplied)
		if err != nil {
			return err
		}
		if err := store.Validate(); err != nil {
			return err
		}

		store.UpdatedAt = s.now()
		if err := tx.UpdateStore(ctx, *store); err != nil {
			return fmt.Errorf("update store: %w", err)
		}
		updated = store
		return nil
	})

	s.done(OpStoreUpdate, err, zap.Int64("store_id", id), zap.Stringer("mode", mode))
	if err != nil {
		return nil, err
	}
	s.publish(domain.StoreUpdated, *updated)
	return updated, nil
}

// Delete removes the store and returns every allocated unit to its product's pool.
func (s *StoreService) Delete(ctx context.Context, id int64) error {
	var deleted domain.Store
	ref := domain.StoreRef(id)

	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		store, err := requireStore(ctx, tx, ref)
		if err != nil {
			return err
		}

		allocations, err := tx.AllocationsByContainer(ctx, ref)
		if err != nil {
			return fmt.Errorf("list allocations of %s: %w", ref, err)
		}
		for _, a := range allocations {
			product, err := requireProduct(ctx, tx, a.ProductID)
			if err != nil {
				return err
			}
			product.AvailableStock += a.Quantity
			if err := tx.UpdateProduct(ctx, *product); err != nil {
				return fmt.Errorf("update product stock: %w", err)
			}
			if err := tx.DeleteAllocation(ctx, ref, a.ProductID); err != nil {
				return fmt.Errorf("delete allocation: %w", err)
			}
		}

		if err := tx.DeleteStore(ctx, id); err != nil {
			return fmt.Errorf("delete store: %w", err)
		}
		deleted = *store
		return nil
	})

	s.done(OpStoreDelete, err, zap.Int64("store_id", id))
	if err != nil {
		return err
	}
	s.publish(domain.StoreDeleted, deleted)
	return nil
}

func (s *StoreService) ensureNameFree(ctx context.Context, tx port.Repository, name string, self int64) error {
	existing, err := tx.StoreByName(ctx, name)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	if existing != nil && existing.ID != self {
		return domain.Errorf(domain.ErrDuplicateName, "store with name %q already exists", name)
	}
	return nil
}

func (s *StoreService) publish(eventType domain.StoreEventType, store domain.Store) {
	s.publisher.Publish(domain.StoreEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Store:      store,
		OccurredAt: s.now(),
	})
}
