package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/port"
)

type ProductService struct {
	db   port.Database
	sync *OccupancySynchronizer
	now  func() time.Time
	observer
}

func NewProductService(db port.Database, sync *OccupancySynchronizer, metrics port.Metrics, logger *zap.Logger) *ProductService {
	return &ProductService{
		db:       db,
		sync:     sync,
		now:      func() time.Time { return time.Now().UTC() },
		observer: newObserver(metrics, logger),
	}
}

func (s *ProductService) Create(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.Name = strings.TrimSpace(product.Name)

	err := product.Validate()
	if err == nil {
		err = s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
			if err := s.ensureNameFree(ctx, tx, product.Name, 0); err != nil {
				return err
			}
			product.CreatedAt = s.now()
			product.UpdatedAt = product.CreatedAt
			if err := tx.InsertProduct(ctx, &product); err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
			return nil
		})
	}

	s.done(OpProductCreate, err, zap.String("name", product.Name), zap.Int("stock", product.AvailableStock))
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	return requireProduct(ctx, s.db, id)
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.db.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Update overwrites name, description, price and available stock. Setting the
// stock here is a restock of the pool; allocated units are untouched.
func (s *ProductService) Update(ctx context.Context, id int64, changes domain.Product) (*domain.Product, error) {
	var updated *domain.Product
	changes.Name = strings.TrimSpace(changes.Name)

	err := changes.Validate()
	if err == nil {
		err = s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
			product, err := requireProduct(ctx, tx, id)
			if err != nil {
				return err
			}
			if err := s.ensureNameFree(ctx, tx, changes.Name, id); err != nil {
				return err
			}

			product.Name = changes.Name
			product.Description = changes.Description
			product.Price = changes.Price
			product.AvailableStock = changes.AvailableStock
			product.UpdatedAt = s.now()
			if err := tx.UpdateProduct(ctx, *product); err != nil {
				return fmt.Errorf("update product: %w", err)
			}
			updated = product
			return nil
		})
	}

	s.done(OpProductUpdate, err, zap.Int64("product_id", id))
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the product together with its allocations and recomputes the
// occupancy of every container that held it.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	err := s.db.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		allocations, err := tx.AllocationsByProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("list allocations of product %d: %w", id, err)
		}

		// containers before the product, in a fixed order
		sort.Slice(allocations, func(i, j int) bool {
			return allocations[i].Container.String() < allocations[j].Container.String()
		})
		for _, a := range allocations {
			if err := lockContainer(ctx, tx, a.Container); err != nil {
				return err
			}
		}

		if _, err := requireProduct(ctx, tx, id); err != nil {
			return err
		}

		for _, a := range allocations {
			if err := tx.DeleteAllocation(ctx, a.Container, id); err != nil {
				return fmt.Errorf("delete allocation: %w", err)
			}
			if _, err := s.sync.Recompute(ctx, tx, a.Container, -a.Quantity); err != nil {
				return err
			}
		}
		if err := tx.DeleteProduct(ctx, id); err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})

	s.done(OpProductDelete, err, zap.Int64("product_id", id))
	return err
}

func (s *ProductService) ensureNameFree(ctx context.Context, tx port.Repository, name string, self int64) error {
	existing, err := tx.ProductByName(ctx, name)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	if existing != nil && existing.ID != self {
		return domain.Errorf(domain.ErrDuplicateName, "product with name %q already exists", name)
	}
	return nil
}

// lockContainer takes the container's row lock whatever its state.
func lockContainer(ctx context.Context, tx port.Repository, ref domain.ContainerRef) error {
	if ref.Kind == domain.ContainerStore {
		_, err := requireStore(ctx, tx, ref)
		return err
	}
	warehouse, err := tx.LockWarehouse(ctx, ref.Key)
	if err != nil {
		return fmt.Errorf("load warehouse: %w", err)
	}
	if warehouse == nil {
		return domain.Errorf(domain.ErrNotFound, "warehouse with business unit code %q not found", ref.Key)
	}
	return nil
}
