package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
	"github.com/rl1809/fulfilment/internal/port"
)

func getMySQLAdapter(t *testing.T) (*MySQLAdapter, *sqlx.DB) {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/fulfilment?parseTime=true"
	}

	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := NewMySQLAdapter(db)
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return adapter, db
}

func uniqueName(prefix string) string {
	return prefix + "-" + time.Now().Format("20060102150405.000000000")
}

func TestMySQLProduct_InsertAndLoad(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()

	product := domain.Product{
		Name:           uniqueName("mysql-product"),
		Description:    "a product",
		Price:          decimal.RequireFromString("12.50"),
		AvailableStock: 7,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := adapter.InsertProduct(ctx, &product); err != nil {
		t.Fatalf("InsertProduct failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, product.ID)

	if product.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	loaded, err := adapter.ProductByName(ctx, product.Name)
	if err != nil {
		t.Fatalf("ProductByName failed: %v", err)
	}
	if loaded == nil || loaded.ID != product.ID {
		t.Fatalf("expected product %d, got %+v", product.ID, loaded)
	}
	if !loaded.Price.Equal(product.Price) {
		t.Errorf("expected price %s, got %s", product.Price, loaded.Price)
	}
	if loaded.AvailableStock != 7 {
		t.Errorf("expected stock 7, got %d", loaded.AvailableStock)
	}
}

func TestMySQLProduct_NotFound(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()

	product, err := adapter.ProductByID(context.Background(), -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product != nil {
		t.Error("expected nil for nonexistent product")
	}
}

func TestMySQLWarehouse_OptimisticLock(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()

	warehouse := domain.Warehouse{
		BusinessUnitCode: uniqueName("MWH"),
		Location:         "AMSTERDAM-001",
		Capacity:         50,
		Occupancy:        10,
		CreatedAt:        time.Now().UTC(),
	}
	if err := adapter.InsertWarehouse(ctx, &warehouse); err != nil {
		t.Fatalf("InsertWarehouse failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM warehouses WHERE id = ?`, warehouse.ID)

	// Update with correct version
	stale := warehouse
	warehouse.Occupancy = 20
	if err := adapter.UpdateWarehouse(ctx, &warehouse); err != nil {
		t.Fatalf("UpdateWarehouse failed: %v", err)
	}
	if warehouse.Version != 1 {
		t.Errorf("expected version 1, got %d", warehouse.Version)
	}

	// Try update with stale version
	err := adapter.UpdateWarehouse(ctx, &stale)
	var conflict *domain.ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrentModificationError, got: %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Errorf("expected 0 vs 1, got %d vs %d", conflict.Expected, conflict.Actual)
	}
}

func TestMySQLAtomic_RollsBackOnError(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()

	name := uniqueName("rollback-store")
	failure := errors.New("boom")

	err := adapter.Atomic(ctx, func(ctx context.Context, tx port.Repository) error {
		store := domain.Store{Name: name, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
		if err := tx.InsertStore(ctx, &store); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected boom, got %v", err)
	}

	store, err := adapter.StoreByName(ctx, name)
	if err != nil {
		t.Fatalf("StoreByName failed: %v", err)
	}
	if store != nil {
		t.Error("expected store insert to be rolled back")
	}
}

func TestMySQLAllocations_TotalAndOrdering(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	banana := domain.Product{Name: uniqueName("banana"), CreatedAt: now, UpdatedAt: now}
	apple := domain.Product{Name: uniqueName("apple"), CreatedAt: now, UpdatedAt: now}
	store := domain.Store{Name: uniqueName("alloc-store"), CreatedAt: now, UpdatedAt: now}
	for _, p := range []*domain.Product{&banana, &apple} {
		if err := adapter.InsertProduct(ctx, p); err != nil {
			t.Fatalf("InsertProduct failed: %v", err)
		}
	}
	if err := adapter.InsertStore(ctx, &store); err != nil {
		t.Fatalf("InsertStore failed: %v", err)
	}
	ref := store.Ref()
	defer func() {
		db.ExecContext(ctx, `DELETE FROM allocations WHERE container_kind = ? AND container_key = ?`, string(ref.Kind), ref.Key)
		db.ExecContext(ctx, `DELETE FROM products WHERE id IN (?, ?)`, banana.ID, apple.ID)
		db.ExecContext(ctx, `DELETE FROM stores WHERE id = ?`, store.ID)
	}()

	adapter.SaveAllocation(ctx, domain.Allocation{Container: ref, ProductID: banana.ID, Quantity: 3})
	adapter.SaveAllocation(ctx, domain.Allocation{Container: ref, ProductID: apple.ID, Quantity: 4})
	// upsert replaces the quantity
	adapter.SaveAllocation(ctx, domain.Allocation{Container: ref, ProductID: apple.ID, Quantity: 5})

	total, count, err := adapter.AllocationTotal(ctx, ref)
	if err != nil {
		t.Fatalf("AllocationTotal failed: %v", err)
	}
	if total != 8 || count != 2 {
		t.Errorf("expected total 8 over 2 rows, got %d over %d", total, count)
	}

	views, err := adapter.AllocationsByContainer(ctx, ref)
	if err != nil {
		t.Fatalf("AllocationsByContainer failed: %v", err)
	}
	if len(views) != 2 || views[0].ProductID != apple.ID || views[1].ProductID != banana.ID {
		t.Errorf("expected apple then banana, got %+v", views)
	}
}

func TestMySQLInsert_DuplicateKeyKinds(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	code := uniqueName("DUP")
	first := domain.Warehouse{BusinessUnitCode: code, Location: "ZWOLLE-001", Capacity: 10, CreatedAt: now}
	if err := adapter.InsertWarehouse(ctx, &first); err != nil {
		t.Fatalf("InsertWarehouse failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM warehouses WHERE business_unit_code = ?`, code)

	second := first
	if err := adapter.InsertWarehouse(ctx, &second); !errors.Is(err, domain.ErrDuplicateCode) {
		t.Errorf("expected ErrDuplicateCode, got: %v", err)
	}

	name := uniqueName("dup-store")
	store := domain.Store{Name: name, CreatedAt: now, UpdatedAt: now}
	if err := adapter.InsertStore(ctx, &store); err != nil {
		t.Fatalf("InsertStore failed: %v", err)
	}
	defer db.ExecContext(ctx, `DELETE FROM stores WHERE name = ?`, name)

	again := domain.Store{Name: name, CreatedAt: now, UpdatedAt: now}
	if err := adapter.InsertStore(ctx, &again); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
}

func TestMySQLCreateWarehouse_ConcurrentSameCode(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	defer db.Close()
	ctx := context.Background()

	code := uniqueName("RACE")
	defer db.ExecContext(ctx, `DELETE FROM warehouses WHERE business_unit_code = ?`, code)

	warehouses := service.NewWarehouseService(adapter, NewStaticLocationResolver(DefaultLocations), nil, nil)

	// Execute racing creates
	var successCount, duplicateCount atomic.Int32
	var wg sync.WaitGroup
	attempts := 5

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := warehouses.Create(ctx, domain.WarehouseSpec{BusinessUnitCode: code, Location: "ZWOLLE-001", Capacity: 10})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrDuplicateCode):
				duplicateCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	// Verify
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 create to succeed, got %d", successCount.Load())
	}
	if duplicateCount.Load() != int32(attempts-1) {
		t.Errorf("expected %d duplicates, got %d", attempts-1, duplicateCount.Load())
	}
}
