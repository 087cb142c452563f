package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/fulfilment/internal/adapter/storage"
	"github.com/rl1809/fulfilment/internal/core/domain"
	"github.com/rl1809/fulfilment/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	warehouseCode = "STRESS.001"
	capacity      = 35
)

func main() {
	ctx := context.Background()

	db := storage.NewMemoryAdapter()
	synchronizer := service.NewOccupancySynchronizer()
	products := service.NewProductService(db, synchronizer, nil, nil)
	stores := service.NewStoreService(db, synchronizer, nil, nil, nil)
	warehouses := service.NewWarehouseService(db, storage.NewStaticLocationResolver(storage.DefaultLocations), nil, nil)
	ledger := service.NewAllocationService(db, synchronizer, nil, nil)

	product, err := products.Create(ctx, domain.Product{Name: "stress-item", Price: decimal.NewFromInt(1), AvailableStock: initialStock})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	storeRefs := make([]domain.ContainerRef, totalRequests)
	for i := range storeRefs {
		store, err := stores.Create(ctx, fmt.Sprintf("store-%d", i), 0)
		if err != nil {
			log.Fatalf("failed to create store: %v", err)
		}
		storeRefs[i] = store.Ref()
	}

	// Round 1: one unit per store, the pool runs dry
	var successCount, failCount, unexpected atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(ref domain.ContainerRef) {
			defer wg.Done()

			_, err := ledger.Upsert(ctx, ref, product.ID, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				failCount.Add(1)
			default:
				unexpected.Add(1)
			}
		}(storeRefs[i])
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	fail := failCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Failed:           %d\n", fail)
	fmt.Printf("Unexpected:       %d\n", unexpected.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(initialStock) && fail == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d allocations succeeded, %d failed\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d fail, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, fail)
	}

	p, _ := products.Get(ctx, product.ID)
	fmt.Printf("Final Pool:       %d\n", p.AvailableStock)
	if p.AvailableStock == 0 {
		fmt.Println("PASS: Pool depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected pool 0, got %d\n", p.AvailableStock)
	}

	// Round 2: racing resizes against a capacity-bounded warehouse
	if _, err := warehouses.Create(ctx, domain.WarehouseSpec{BusinessUnitCode: warehouseCode, Location: "AMSTERDAM-001", Capacity: capacity}); err != nil {
		log.Fatalf("failed to create warehouse: %v", err)
	}
	bulk, err := products.Create(ctx, domain.Product{Name: "stress-bulk", Price: decimal.NewFromInt(1), AvailableStock: 1000})
	if err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	ref := domain.WarehouseRef(warehouseCode)
	for i := 1; i <= totalRequests; i++ {
		wg.Add(1)
		go func(quantity int) {
			defer wg.Done()
			ledger.Upsert(ctx, ref, bulk.ID, quantity)
		}(i)
	}
	wg.Wait()

	w, _ := warehouses.Get(ctx, warehouseCode)
	b, _ := products.Get(ctx, bulk.ID)
	allocated, _, _ := db.AllocationTotal(ctx, ref)
	fmt.Printf("Warehouse:        occupancy %d / capacity %d\n", w.Occupancy, w.Capacity)

	if w.Occupancy <= w.Capacity && w.Occupancy == allocated {
		fmt.Println("PASS: Occupancy within capacity and equal to allocations")
	} else {
		fmt.Printf("FAIL: occupancy %d, allocated %d, capacity %d\n", w.Occupancy, allocated, w.Capacity)
	}
	if b.AvailableStock+allocated == 1000 {
		fmt.Println("PASS: Stock conserved")
	} else {
		fmt.Printf("FAIL: pool %d + allocated %d != 1000\n", b.AvailableStock, allocated)
	}
}
