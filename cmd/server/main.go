package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/fulfilment/config"
	"github.com/rl1809/fulfilment/internal/adapter/handler"
	"github.com/rl1809/fulfilment/internal/adapter/legacy"
	"github.com/rl1809/fulfilment/internal/adapter/metrics"
	"github.com/rl1809/fulfilment/internal/adapter/storage"
	"github.com/rl1809/fulfilment/internal/core/service"
	"github.com/rl1809/fulfilment/internal/logger"
	"github.com/rl1809/fulfilment/internal/port"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger, err := logger.New(cfg.Server.AppEnv, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, closeDB := openDatabase(ctx, cfg, appLogger)
	defer closeDB()

	// Location reference data
	locations, closeLocations := openLocations(ctx, cfg, appLogger)
	defer closeLocations()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheus(registry)

	// Legacy store sync
	var publisher port.StoreEventPublisher
	var syncWorker *legacy.SyncWorker
	if cfg.Legacy.Enabled {
		gateway := legacy.NewFileGateway(cfg.Legacy.OutputDir, appLogger)
		syncWorker = legacy.NewSyncWorker(gateway, cfg.Legacy.QueueSize, appLogger)
		syncWorker.Start(cfg.Legacy.Workers)
		publisher = syncWorker
		appLogger.Info("started legacy sync workers", zap.Int("workers", cfg.Legacy.Workers))
	}

	// Services
	synchronizer := service.NewOccupancySynchronizer()
	ledger := service.NewAllocationService(db, synchronizer, recorder, appLogger)
	warehouses := service.NewWarehouseService(db, locations, recorder, appLogger)
	products := service.NewProductService(db, synchronizer, recorder, appLogger)
	stores := service.NewStoreService(db, synchronizer, publisher, recorder, appLogger)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLoggingInterceptor(appLogger)))
	handler.NewGRPCHandler(warehouses, ledger, appLogger).Register(grpcServer)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		appLogger.Fatal("failed to listen", zap.String("port", cfg.Server.GRPCPort), zap.Error(err))
	}
	go func() {
		appLogger.Info("gRPC server listening", zap.String("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("gRPC server error", zap.Error(err))
		}
	}()

	// HTTP server
	httpHandler := handler.NewHTTPHandler(products, stores, warehouses, ledger, appLogger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.HTTPPort,
		Handler:           handler.NewRouter(httpHandler, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("HTTP server listening", zap.String("port", cfg.Server.HTTPPort))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	appLogger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	appLogger.Info("gRPC server stopped")

	// Drain queued store events after the last request has committed
	if syncWorker != nil {
		syncWorker.Close()
		appLogger.Info("legacy sync workers stopped")
	}
}

func openDatabase(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (port.Database, func()) {
	switch cfg.Storage.Driver {
	case "memory":
		appLogger.Info("using in-memory storage")
		return storage.NewMemoryAdapter(), func() {}

	case "mysql":
		db, err := sqlx.Open("mysql", cfg.MySQL.DSN)
		if err != nil {
			appLogger.Fatal("failed to open mysql", zap.Error(err))
		}
		db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
		db.SetConnMaxLifetime(time.Duration(cfg.MySQL.ConnMaxLifetime) * time.Second)

		if err := db.PingContext(ctx); err != nil {
			appLogger.Fatal("failed to ping mysql", zap.Error(err))
		}
		appLogger.Info("connected to mysql")

		adapter := storage.NewMySQLAdapter(db)
		if cfg.Storage.Migrate {
			if err := adapter.Migrate(ctx); err != nil {
				appLogger.Fatal("failed to migrate schema", zap.Error(err))
			}
		}
		return adapter, func() { db.Close() }
	}

	appLogger.Fatal("unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	return nil, nil
}

func openLocations(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (port.LocationResolver, func()) {
	switch cfg.Locations.Resolver {
	case "static":
		return storage.NewStaticLocationResolver(storage.DefaultLocations), func() {}

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal("failed to connect redis", zap.Error(err))
		}
		appLogger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

		resolver := storage.NewRedisLocationResolver(rdb)
		if cfg.Locations.Seed {
			seeded, err := resolver.Seed(ctx, storage.DefaultLocations)
			if err != nil {
				appLogger.Fatal("failed to seed locations", zap.Error(err))
			}
			appLogger.Info("seeded locations", zap.Int("written", seeded))
		}
		return resolver, func() { rdb.Close() }
	}

	appLogger.Fatal("unknown location resolver", zap.String("resolver", cfg.Locations.Resolver))
	return nil, nil
}
