package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mnemochat/internal/config"
	"mnemochat/internal/database/kafka"
	"mnemochat/internal/database/milvus"
	"mnemochat/internal/embedding"
	"mnemochat/internal/llm"
	"mnemochat/internal/memory/consumer"
	"mnemochat/internal/memory/extractor"
	"mnemochat/internal/memory/service"
	"mnemochat/internal/memory/store"
	"mnemochat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level)
	appLogger := logger.New("memory_service", "", "")

	// Initialize database clients
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer milvusClient.Close()
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		appLogger.Fatal(err.Error())
	}

	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer kafkaClient.Close()

	// Initialize embedding and LLM clients
	embedder, err := embedding.NewClient(cfg.Embedding)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		appLogger.Fatal(err.Error())
	}

	// Initialize the extraction pipeline
	factStore := store.NewMilvusStore(milvusClient, embedder)
	factExtractor := extractor.NewLlmExtractor(llmClient, "")
	memoryService := service.NewMemoryService(factExtractor, factStore, cfg.Memory, appLogger)

	// Initialize and start Kafka consumer
	kafkaConsumer := consumer.NewKafkaConsumer(
		kafkaClient,
		memoryService,
		time.Duration(cfg.Memory.ExtractionTimeout)*time.Second,
		appLogger,
	)
	kafkaConsumer.Start(ctx)

	// Expose a minimal health endpoint
	if cfg.Server.HealthAddr != "" {
		go func() {
			r := gin.Default()
			r.GET("/healthz", func(c *gin.Context) {
				if err := milvusClient.HealthCheck(c.Request.Context()); err != nil {
					c.JSON(http.StatusServiceUnavailable, gin.H{"status": "down", "error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"status": "ok"})
			})
			if err := r.Run(cfg.Server.HealthAddr); err != nil {
				appLogger.Error(err.Error())
			}
		}()
	}

	appLogger.Info("Memory service started")

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	cancel()

	appLogger.Info("Memory service stopped")
}
