package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/fulfilment/internal/adapter/storage"
	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sqlx.DB
	db      *storage.MySQLAdapter
	server  *testServer
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/fulfilment?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sqlx.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	resolver := storage.NewRedisLocationResolver(rdb)
	if _, err := resolver.Seed(context.Background(), storage.DefaultLocations); err != nil {
		t.Fatalf("seed locations failed: %v", err)
	}

	synchronizer := service.NewOccupancySynchronizer()
	h := NewHTTPHandler(
		service.NewProductService(adapter, synchronizer, nil, nil),
		service.NewStoreService(adapter, synchronizer, nil, nil, nil),
		service.NewWarehouseService(adapter, resolver, nil, nil),
		service.NewAllocationService(adapter, synchronizer, nil, nil),
		nil,
	)
	server := httptest.NewServer(NewRouter(h, nil))

	return &testEnv{
		redis:  rdb,
		mysql:  db,
		db:     adapter,
		server: &testServer{t: t, server: server},
		cleanup: func() {
			server.Close()
			rdb.Close()
			db.Close()
		},
	}
}

func TestIntegration_ConcurrentAllocationsConserveStock(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	code := "IT-" + suffix
	initialStock := 30

	p := env.server.createProduct("integration-"+suffix, initialStock)
	env.server.createWarehouse(code, "AMSTERDAM-002", 20)
	defer func() {
		env.mysql.ExecContext(ctx, `DELETE FROM allocations WHERE product_id = ?`, p.ID)
		env.mysql.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, p.ID)
		env.mysql.ExecContext(ctx, `DELETE FROM warehouses WHERE business_unit_code = ?`, code)
	}()

	// Execute upserts
	var successCount atomic.Int32
	var wg sync.WaitGroup
	totalRequests := 25

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPut,
				fmt.Sprintf("%s/warehouse/%s/products/%d", env.server.server.URL, code, p.ID),
				jsonBody(map[string]int{"quantity": quantity}))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				successCount.Add(1)
			}
		}(i + 1)
	}
	wg.Wait()

	if successCount.Load() == 0 {
		t.Fatal("expected some upserts to succeed")
	}

	// Verify MySQL state
	product, err := env.db.ProductByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("load product: %v", err)
	}
	warehouse, err := env.db.WarehouseByCode(ctx, code)
	if err != nil {
		t.Fatalf("load warehouse: %v", err)
	}
	allocated, _, err := env.db.AllocationTotal(ctx, domain.WarehouseRef(code))
	if err != nil {
		t.Fatalf("allocation total: %v", err)
	}

	if product.AvailableStock+allocated != initialStock {
		t.Errorf("pool %d + allocated %d != %d", product.AvailableStock, allocated, initialStock)
	}
	if warehouse.Occupancy != allocated || warehouse.Occupancy > warehouse.Capacity {
		t.Errorf("occupancy %d must equal allocated %d and stay within capacity %d",
			warehouse.Occupancy, allocated, warehouse.Capacity)
	}
}

func TestIntegration_RedisLocationLimits(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	identifier := "IT-LOC-" + uuid.NewString()[:8]
	resolver := storage.NewRedisLocationResolver(env.redis)
	if err := resolver.SetLocation(ctx, domain.Location{Identifier: identifier, MinCapacity: 1, MaxCapacity: 15}); err != nil {
		t.Fatalf("set location: %v", err)
	}
	defer env.redis.Del(ctx, "location:"+identifier)

	code := "IT-" + uuid.NewString()[:8]
	defer env.mysql.ExecContext(ctx, `DELETE FROM warehouses WHERE business_unit_code = ?`, code)

	resp := env.server.do(http.MethodPost, "/warehouse",
		map[string]any{"businessUnitCode": code, "location": identifier, "capacity": 16})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = env.server.do(http.MethodPost, "/warehouse",
		map[string]any{"businessUnitCode": code, "location": identifier, "capacity": 15})
	expectStatus(t, resp, http.StatusCreated)
}

func TestIntegration_ArchiveIsVisibleAcrossRequests(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	code := "IT-" + uuid.NewString()[:8]
	defer env.mysql.ExecContext(ctx, `DELETE FROM warehouses WHERE business_unit_code = ?`, code)

	env.server.createWarehouse(code, "TILBURG-001", 10)

	resp := env.server.do(http.MethodDelete, "/warehouse/"+code, nil)
	expectStatus(t, resp, http.StatusNoContent)

	stored, err := env.db.WarehouseByCode(ctx, code)
	if err != nil {
		t.Fatalf("load warehouse: %v", err)
	}
	if !stored.IsArchived() || stored.Version != 1 {
		t.Errorf("expected archived warehouse at version 1, got %+v", stored)
	}

	resp = env.server.do(http.MethodGet, "/warehouse/search?location=TILBURG-001&pageSize=100", nil)
	expectStatus(t, resp, http.StatusOK)
	for _, w := range decodeBody[[]domain.Warehouse](t, resp) {
		if w.BusinessUnitCode == code {
			t.Error("archived warehouse must not be searchable")
		}
	}
}
