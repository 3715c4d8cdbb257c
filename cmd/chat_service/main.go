package main

import (
	"context"
	"log"

	"mnemochat/internal/chat_service/api"
	"mnemochat/internal/chat_service/publisher"
	"mnemochat/internal/chat_service/service"
	"mnemochat/internal/chat_service/store"
	"mnemochat/internal/config"
	"mnemochat/internal/database/kafka"
	"mnemochat/internal/database/milvus"
	mongodb "mnemochat/internal/database/mongo"
	redisdb "mnemochat/internal/database/redis"
	"mnemochat/internal/embedding"
	"mnemochat/internal/llm"
	memorystore "mnemochat/internal/memory/store"
	userstore "mnemochat/internal/user_service/store"
	"mnemochat/pkg/logger"

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
	appLogger := logger.New("chat_service", "", "")

	// Initialize database clients
	ctx := context.Background()
	db, err := mongodb.GetDatabase(&cfg.Databases.MongoDB)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer mongodb.Close(ctx)

	redisClient, err := redisdb.GetClient(&cfg.Databases.Redis)
	if err != nil {
		appLogger.Fatal(err.Error())
	}
	defer redisdb.Close()

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

	// Initialize dependencies (Store -> Service -> Handler)
	convStore := store.NewMongoConversationStore(db, "conversations")
	users := userstore.NewMongoUserStore(db, "users")
	sessions := userstore.NewRedisSessionStore(redisClient)
	factStore := memorystore.NewMilvusStore(milvusClient, embedder)
	turnPublisher := publisher.NewTurnPublisher(kafkaClient.Writer, appLogger)

	chatService := service.NewChatService(convStore, users, factStore, turnPublisher, llmClient, cfg.Memory, appLogger)
	apiHandler := api.NewHandler(chatService)

	// Setup and start Gin router
	router := api.SetupRouter(apiHandler, cfg.Auth.JwtSecret, sessions, cfg.Middleware)

	addr := cfg.Server.ChatAddr
	if addr == "" {
		addr = ":8081"
	}
	appLogger.Info("Starting chat service on " + addr)

	if err := router.Run(addr); err != nil {
		appLogger.Fatal(err.Error())
	}
}
