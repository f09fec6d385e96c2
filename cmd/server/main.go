package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stockroom/allocator/internal/adapter/events"
	"github.com/stockroom/allocator/internal/adapter/handler"
	"github.com/stockroom/allocator/internal/adapter/storage"
	"github.com/stockroom/allocator/internal/config"
	"github.com/stockroom/allocator/internal/core/domain"
	"github.com/stockroom/allocator/internal/core/service"
	"github.com/stockroom/allocator/internal/port"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.CacheTTL)

	var publisher port.EventPublisher
	var kafkaPublisher *events.KafkaPublisher
	if cfg.KafkaBroker != "" {
		kafkaPublisher = events.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		publisher = kafkaPublisher
		logger.Info("publishing outcomes to kafka", zap.String("broker", cfg.KafkaBroker))
	}

	// Initialize services
	allocations := service.NewAllocationService(
		mysqlAdapter, mysqlAdapter, redisAdapter, logger,
		cfg.MaxConcurrent, cfg.QueueSize,
	)
	inventory := service.NewInventoryService(mysqlAdapter, redisAdapter, logger, cfg.MaxConcurrent)

	// Start outcome workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, allocations.OutcomeQueue(), publisher, logger)
		}(i)
	}
	logger.Info("started outcome workers", zap.Int("count", cfg.WorkerCount))

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(allocations, inventory, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/allocate", httpHandler.Allocate)
	mux.HandleFunc("/api/stock", httpHandler.AddStock)
	mux.HandleFunc("/api/location", httpHandler.GetLocation)
	mux.HandleFunc("/api/collect", httpHandler.Collect)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	// Close outcome queue and wait for workers
	allocations.Close()
	wg.Wait()
	logger.Info("workers stopped")

	// Close connections
	if kafkaPublisher != nil {
		kafkaPublisher.Close()
	}
	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func workerLoop(id int, queue <-chan domain.OutcomeEvent, publisher port.EventPublisher, logger *zap.Logger) {
	for event := range queue {
		fields := []zap.Field{
			zap.Int("worker", id),
			zap.String("batch_id", event.BatchID),
			zap.String("location_id", event.LocationID),
			zap.String("order_id", event.OrderID),
			zap.String("item_id", event.ItemID),
			zap.String("outcome", string(event.Outcome)),
		}

		if publisher == nil {
			logger.Info("allocation outcome", fields...)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := publisher.PublishOutcome(ctx, event); err != nil {
			logger.Error("failed to publish outcome", append(fields, zap.Error(err))...)
		} else {
			logger.Info("published allocation outcome", fields...)
		}
		cancel()
	}
}
