package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportdesk/backend/internal/api/handler"
	"supportdesk/backend/internal/assistant"
	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/support"
	"supportdesk/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const dispatchWorkers = 4

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development() {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func setupDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		logger.Fatal("Failed to connect PostgreSQL", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect Redis", zap.Error(err))
	}

	logger.Info("Database and Redis connections established")
	return db, rdb
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting support backend", zap.String("addr", cfg.HTTPAddr))

	db, rdb := setupDependencies(ctx, cfg, logger)
	store := storage.NewStorageService(db, rdb)
	if err := store.AutoMigrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	localizer, err := localization.NewDefault()
	if err != nil {
		logger.Fatal("Failed to load message catalog", zap.Error(err))
	}

	generator, err := assistant.NewOpenAIGenerator(cfg.AI)
	if err != nil {
		logger.Fatal("Failed to configure text generation", zap.Error(err))
	}
	responder, err := assistant.NewResponder(generator, localizer, assistant.Options{
		HistoryWindow:   cfg.AI.HistoryWindow,
		Timeout:         cfg.AI.Timeout,
		BusinessName:    cfg.AI.BusinessName,
		BusinessContext: cfg.AI.BusinessContext,
	})
	if err != nil {
		logger.Fatal("Failed to build responder", zap.Error(err))
	}

	bot, err := telegram.NewBotAPI(cfg.Telegram)
	if err != nil {
		logger.Fatal("Failed to start Telegram bot", zap.Error(err))
	}
	channel := telegram.NewTelegramChannel(bot, cfg.Telegram, logger)
	bridge := telegram.NewBridge(channel, store, localizer, cfg.Telegram.SupportChatID, logger)

	// media storage is optional; without it uploads answer 502 and operator
	// attachments are dropped
	var mediaStore media.Store
	if cfg.Media.Endpoint != "" {
		ms, err := media.NewMinioStore(ctx, cfg.Media, logger)
		if err != nil {
			logger.Fatal("Failed to connect media storage", zap.Error(err))
		}
		mediaStore = ms
	} else {
		logger.Warn("MINIO_ENDPOINT not set, media uploads disabled")
	}

	dispatcher := support.NewAsyncDispatcher(config.DispatchQueueSize, dispatchWorkers, config.DispatchJobTimeout, logger)
	service := support.NewService(store, responder, bridge, mediaStore, dispatcher, logger, support.Options{
		RelayTimeout:      cfg.Telegram.Timeout,
		AttachmentTimeout: cfg.Telegram.FileTimeout,
	})

	hub := chathub.NewManagerService(store, logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()

	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handler.NewHandler(service, hub, cfg.JWTSecret, cfg.Telegram.WebhookSecret, logger)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handler.NewRouter(h),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// websocket connections are hijacked, so Shutdown does not wait for them
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	stopHub()
	<-hubDone
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Dispatcher did not drain", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("Redis close failed", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
