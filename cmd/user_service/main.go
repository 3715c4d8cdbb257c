package main

import (
	"context"
	"log"
	"time"

	"mnemochat/internal/config"
	mongodb "mnemochat/internal/database/mongo"
	redisdb "mnemochat/internal/database/redis"
	"mnemochat/internal/user_service/api"
	"mnemochat/internal/user_service/service"
	"mnemochat/internal/user_service/store"
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
	appLogger := logger.New("user_service", "", "")

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

	// Initialize dependencies (Store -> Service -> Handler)
	userStore := store.NewMongoUserStore(db, "users")
	sessionStore := store.NewRedisSessionStore(redisClient)
	userService := service.NewService(
		userStore,
		sessionStore,
		cfg.Auth.JwtSecret,
		time.Duration(cfg.Auth.TokenTTL)*time.Second,
		time.Duration(cfg.Auth.SessionTTL)*time.Second,
	)
	apiHandler := api.NewHandler(userService)

	// Setup and start Gin router
	router := api.SetupRouter(apiHandler, cfg.Auth.JwtSecret, sessionStore, cfg.Middleware)

	addr := cfg.Server.UserAddr
	if addr == "" {
		addr = ":8080"
	}
	appLogger.Info("Starting user service on " + addr)

	if err := router.Run(addr); err != nil {
		appLogger.Fatal(err.Error())
	}
}
