package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"bazaar-chat/config"
	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/directory"
	"bazaar-chat/internal/events"
	"bazaar-chat/internal/handler"
	"bazaar-chat/internal/middleware"
	"bazaar-chat/internal/outbox"
	appredis "bazaar-chat/internal/redis"
	"bazaar-chat/internal/repository"
	"bazaar-chat/internal/services"
	"bazaar-chat/internal/websocket"
	"bazaar-chat/pkg/database"
	"bazaar-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()

	logMode := logger.DevelopmentMode
	if cfg.AppMode == "release" {
		logMode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.New(logMode)
	logger.SetGlobalLogger(appLogger)

	database.Connect(cfg)
	defer database.Close()
	if err := database.RunFullMigration("migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := appredis.NewClient(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	db := database.DB
	convRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	eventRepo := repository.NewEventRepository(db)
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get sql.DB: %v", err)
	}
	outboxRepo := repository.NewOutboxRepository(sqlDB)

	// Event plumbing
	eventBus := events.NewBus()
	commandBus := commands.NewBus()
	locks := services.NewConversationLocks()
	userDirectory := directory.NewRedisDirectory(redisClient)

	// Services
	messageService := services.NewMessageService(db, messageRepo, convRepo, eventRepo, commandBus, eventBus, locks)
	conversationService := services.NewConversationService(db, convRepo, messageRepo, eventRepo, userDirectory, commandBus, eventBus, locks)
	offerService := services.NewOfferService(db, offerRepo, convRepo, messageService, commandBus, eventBus, appLogger)
	notificationService := services.NewNotificationService(convRepo, eventBus, appLogger)
	presenceStore := appredis.NewPresenceStore(redisClient, cfg.TypingQuietWindow)
	presenceService := services.NewPresenceService(presenceStore, convRepo, eventBus)

	// Background workers
	publisher := appredis.NewPublisher(redisClient)
	outbox.NewRunner(outbox.DefaultProcessor(outboxRepo, publisher, appLogger)).Start(ctx)
	go offerService.RunSweeper(ctx, cfg.OfferSweepInterval)

	// Websocket delivery
	hub := websocket.NewHub()
	go hub.Run(ctx)
	websocket.NewLocalBridge(eventBus, hub)
	bridge := websocket.NewRedisBridge(appredis.NewSubscriber(redisClient), hub)
	go func() {
		if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
			appLogger.Errorf("redis bridge stopped: %v", err)
		}
	}()

	// HTTP surface
	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)
	conversationHandler := handler.NewConversationHandler(conversationService)
	messageHandler := handler.NewMessageHandler(messageService)
	offerHandler := handler.NewOfferHandler(offerService, cfg.DefaultOfferTTL)
	presenceHandler := handler.NewPresenceHandler(presenceService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	wsHandler := websocket.NewHandler(verifier, hub, websocket.NewChannelAuthorizer(convRepo))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))
	r.Use(middleware.ErrorHandler(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/ws", wsHandler.Connect)

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(verifier))
	{
		api.POST("/conversations", conversationHandler.Start)
		api.GET("/conversations", conversationHandler.List)
		api.GET("/conversations/:id", conversationHandler.GetByID)
		api.POST("/conversations/:id/read", conversationHandler.MarkRead)

		api.POST("/conversations/:id/messages", messageHandler.Send)
		api.GET("/conversations/:id/messages", messageHandler.List)

		api.POST("/conversations/:id/typing", presenceHandler.StartTyping)
		api.DELETE("/conversations/:id/typing", presenceHandler.StopTyping)
		api.GET("/conversations/:id/typing", presenceHandler.TypingUsers)

		api.POST("/offers", offerHandler.Create)
		api.GET("/offers/:id", offerHandler.GetByID)
		api.POST("/offers/:id/accept", offerHandler.Accept)
		api.POST("/offers/:id/reject", offerHandler.Reject)
		api.POST("/offers/:id/withdraw", offerHandler.Withdraw)
		api.POST("/offers/:id/counter", offerHandler.Counter)

		api.GET("/notifications/unread", notificationHandler.UnreadTotal)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.AppPort),
		Handler: r,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	appLogger.Infof("Starting server on port %s", cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
