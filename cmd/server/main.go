package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marealta-service/config"
	"marealta-service/internal/api"
	"marealta-service/internal/broker"
	"marealta-service/internal/ledger"
	"marealta-service/internal/models"
	"marealta-service/internal/redisclient"
	"marealta-service/internal/service"
	"marealta-service/internal/store"
	"marealta-service/internal/util"
	"marealta-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marealta service")

	tp, err := util.InitTracer("marealta-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	var st store.Store
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		st = store.NewMemory()
		log.Println("Using in-memory store")
	default:
		pg, err := store.NewPostgres(cfg.Store.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		st = pg
		log.Println("Database connected")
	}
	defer st.Close()

	var redisClient *redisclient.Client
	if cfg.Redis.Enabled {
		redisClient, err = redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	var eventPublisher *broker.EventPublisher
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer producer.Close()
		eventPublisher = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	}

	inventoryLedger := ledger.NewInventory(cfg.Business.NegativeStockPolicy)
	financeLedger := ledger.NewFinance()

	orderService := service.NewOrderService(st, redisClient, inventoryLedger, financeLedger, eventPublisher, cfg.Business.StrictPartLinking)
	inventoryService := service.NewInventoryService(st, redisClient, inventoryLedger, eventPublisher)
	financeService := service.NewFinanceService(st, financeLedger)
	registryService := service.NewRegistryService(st)

	if redisClient != nil {
		if err := syncPartCache(st, redisClient); err != nil {
			log.Printf("Failed to sync part quantities to Redis: %v", err)
		}
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var fiscalWorker *worker.FiscalWorker
	var stockAlertWorker *worker.StockAlertWorker
	if cfg.Kafka.Enabled {
		fiscalConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
		fiscalWorker = worker.NewFiscalWorker(fiscalConsumer, eventPublisher)
		go func() {
			if err := fiscalWorker.Start(workerCtx); err != nil {
				log.Printf("Fiscal worker error: %v", err)
			}
		}()

		alertConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, "stock-alert-group")
		stockAlertWorker = worker.NewStockAlertWorker(alertConsumer)
		go func() {
			if err := stockAlertWorker.Start(workerCtx); err != nil {
				log.Printf("Stock alert worker error: %v", err)
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, inventoryService, financeService, registryService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if fiscalWorker != nil {
		fiscalWorker.Stop()
	}
	if stockAlertWorker != nil {
		stockAlertWorker.Stop()
	}

	log.Println("Server exited")
}

// syncPartCache primes the Redis part-quantity cache from the store
func syncPartCache(st store.Store, redisClient *redisclient.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var parts []models.Part
	if err := st.View(ctx, func(tx *store.Tx) error {
		var err error
		parts, err = store.Load(tx, store.Parts)
		return err
	}); err != nil {
		return err
	}

	quantities := make(map[string]int, len(parts))
	for _, p := range parts {
		quantities[p.ID] = p.Quantity
	}
	return redisClient.SyncPartQuantities(ctx, quantities)
}
