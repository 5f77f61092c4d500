package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/anonroom/anonroom/internal/api/http"
	"github.com/anonroom/anonroom/internal/broadcast"
	"github.com/anonroom/anonroom/internal/config"
	"github.com/anonroom/anonroom/internal/moderation"
	"github.com/anonroom/anonroom/internal/repository"
	"github.com/anonroom/anonroom/internal/repository/model"
	"github.com/anonroom/anonroom/internal/service"
	"github.com/anonroom/anonroom/internal/sweeper"
	"github.com/anonroom/anonroom/lib/logger/sl"
	"github.com/anonroom/anonroom/lib/logger/slogpretty"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	sessionRepo := repository.NewPostgresSessionRepository(db)
	roomRepo := repository.NewPostgresRoomRepository(db)
	messageRepo := repository.NewPostgresMessageRepository(db)

	limiter, stopLimiter := buildRateLimiter(cfg.Redis, log)
	defer stopLimiter()

	gate := moderation.NewGate(cfg.Moderation, cfg.RateLimits, limiter, messageRepo, log)
	hub := broadcast.NewHub(log)

	sessionService := service.NewSessionService(sessionRepo, gate, cfg.Session, cfg.Moderation.MaxNicknameLength, log)
	roomService := service.NewRoomService(roomRepo, gate, hub, cfg.Moderation.MaxRoomNameLength, log)
	messageService := service.NewMessageService(roomRepo, messageRepo, gate, hub, cfg.Moderation.MaxMessageLength, log)

	sessionController := httpapi.NewSessionController(sessionService, log)
	roomController := httpapi.NewRoomController(roomService, log)
	messageController := httpapi.NewMessageController(messageService, log)
	streamController := httpapi.NewStreamController(roomService, log)

	router := httpapi.SetupRouter(cfg, sessionService,
		sessionController, roomController, messageController, streamController, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sw := sweeper.New(roomRepo, sessionRepo, cfg.Lifecycle, cfg.Session.TTL, log)
	go sw.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	go func() {
		log.Info("starting application", slog.String("addr", cfg.HTTP.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", sl.Err(err))
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&model.Session{}, &model.Room{}, &model.Message{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// buildRateLimiter prefers redis so limits hold across replicas; without an
// address the in-process fixed-window limiter serves single-node deploys.
func buildRateLimiter(cfg config.RedisConfig, log *slog.Logger) (moderation.RateLimiter, func()) {
	if cfg.Addr == "" {
		mem := moderation.NewMemoryRateLimiter()
		return mem, mem.Stop
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unreachable, falling back to in-memory rate limiting", sl.Err(err))
		mem := moderation.NewMemoryRateLimiter()
		return mem, mem.Stop
	}

	log.Info("redis rate limiter enabled", slog.String("addr", cfg.Addr))
	return moderation.NewRedisRateLimiter(rdb), func() { _ = rdb.Close() }
}
