package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"mailwatch/config"
	"mailwatch/internal/handler"
	"mailwatch/internal/mailer"
	"mailwatch/internal/middleware"
	"mailwatch/internal/queue"
	"mailwatch/internal/repository"
	"mailwatch/internal/services"
	"mailwatch/internal/settings"
	"mailwatch/pkg/database"
	"mailwatch/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()

	mode := logger.DevelopmentMode
	if cfg.AppMode == "release" {
		mode = logger.ProductionMode
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := logger.New(mode)
	logger.SetGlobalLogger(appLogger)

	// Connect to Database
	database.Connect(cfg)
	defer database.Close()

	if err := database.RunFullMigration("migrations"); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})

	ctx := context.Background()
	queueClient, err := queue.NewClient(ctx, queue.Config{
		Region:    cfg.AWSRegion,
		AccessKey: cfg.AWSAccessKey,
		SecretKey: cfg.AWSSecretKey,
		Endpoint:  cfg.AWSEndpoint,
	})
	if err != nil {
		log.Fatalf("Failed to build queue client: %v", err)
	}

	logRepo := repository.NewLogRepository(database.DB)
	eventRepo := repository.NewEventRepository(database.DB)
	settingsStore := settings.NewStore(database.DB, redisClient)

	trackingService := services.NewTrackingService(logRepo, eventRepo, appLogger)
	syncService := services.NewSyncService(queueClient, trackingService, settingsStore, appLogger)
	sendService := services.NewSendService(logRepo, mailer.New(cfg), settingsStore, appLogger)
	metricsService := services.NewMetricsService(logRepo, eventRepo, redisClient, appLogger)

	worker := services.NewPollingWorker(queueClient, trackingService, settingsStore, appLogger)
	worker.Start()
	defer worker.Stop()

	retention := services.NewRetentionService(logRepo, eventRepo, settingsStore, appLogger)
	retention.Start()
	defer retention.Stop()

	trackingHandler := handler.NewTrackingHandler(trackingService, syncService, worker, logRepo, eventRepo)
	metricsHandler := handler.NewMetricsHandler(metricsService)
	sendHandler := handler.NewSendHandler(sendService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(appLogger))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/webhooks/email", trackingHandler.Webhook)
		api.POST("/emails/send", sendHandler.Send)
		api.POST("/tracking/sync/:id", trackingHandler.ManualSync)
		api.GET("/tracking/logs", trackingHandler.ListLogs)
		api.GET("/tracking/logs/:id/events", trackingHandler.ListLogEvents)
		api.GET("/tracking/worker", trackingHandler.WorkerStatus)
		api.POST("/tracking/worker/pause", trackingHandler.PauseWorker)
		api.POST("/tracking/worker/resume", trackingHandler.ResumeWorker)
		api.GET("/metrics/dashboard", metricsHandler.Dashboard)
	}

	go func() {
		appLogger.Infof("Starting server on port %s", cfg.AppPort)
		if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("Shutting down")
}
