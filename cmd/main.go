package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"chatroom/backend/internal/api/handler"
	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/chatroom"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/encryption"
	"chatroom/backend/internal/invitation"
	"chatroom/backend/internal/storage"
	"chatroom/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := config.NewLogger(cfg)
	log.Info("Starting chatroom backend...")
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Шифрування: без робочого ключа сервіс не стартує
	cipher, err := encryption.New(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialise message cipher: %v", err)
	}

	// 2. База даних
	db, err := storage.Open(cfg.DatabaseDSN, log)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	store := storage.NewStorageService(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Redis (необов'язковий): rate limit та черга задач
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect Redis: %v", err)
		}
		defer rdb.Close()
	}

	rooms := chatroom.NewService(store, cipher, cfg.MessageRetention, log)
	invitations := invitation.NewService(store, log)
	verifier := auth.NewVerifier(cfg.JWTSecret, store)

	hub := chathub.NewManagerService(rooms, chathub.NewOccupancy(), log)
	if rdb != nil {
		enq := worker.NewEnqueuer(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		defer enq.Close()
		rooms.OnDegraded = enq.NotifyDegraded
	}
	go hub.Run(ctx)

	h := handler.NewHandler(hub, rooms, invitations, verifier, log)
	r := handler.NewRouter(h, handler.RouterOptions{
		Logger:          log,
		Redis:           rdb,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    config.HTTPReadTimeout,
		WriteTimeout:   config.HTTPWriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}
	hub.Wait()

	sqlDB, err := db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Stopped.")
}
