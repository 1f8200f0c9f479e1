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

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/coordinator"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service")

	tp, err := util.InitTracer("fulfillment-service", cfg.Server.Env, cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected, migrations applied")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSnapshot)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	feedPublisher := broker.NewFeedPublisher(producer)

	coord := coordinator.New()
	defer coord.Close()

	orderService := service.NewOrderService(db, redisClient, feedPublisher, coord, service.Options{
		PersistTimeout: time.Duration(cfg.Business.PersistTimeoutSeconds) * time.Second,
		ScanSessionTTL: time.Duration(cfg.Business.ScanSessionTTLSeconds) * time.Second,
		ViewCacheTTL:   time.Duration(cfg.Business.ViewCacheTTLSeconds) * time.Second,
		TokenBaseURL:   cfg.Business.TokenBaseURL,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	feedConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicSnapshot, cfg.Kafka.ConsumerGroup)
	feedWorker := worker.NewFeedWorker(feedConsumer, coord)
	go func() {
		if err := feedWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Feed worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService)
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
	feedWorker.Stop()
	coord.Close()

	log.Println("Server exited")
}
