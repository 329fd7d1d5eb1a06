package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/mapofwonders/auth-service/config"
	"github.com/mapofwonders/auth-service/db"
	"github.com/mapofwonders/auth-service/internal/auth/domain"
	"github.com/mapofwonders/auth-service/internal/auth/handler"
	pgrepo "github.com/mapofwonders/auth-service/internal/auth/repository/postgres"
	sqliterepo "github.com/mapofwonders/auth-service/internal/auth/repository/sqlite"
	"github.com/mapofwonders/auth-service/internal/auth/service"
	"github.com/mapofwonders/auth-service/internal/events"
	"github.com/mapofwonders/auth-service/internal/logger"
	"github.com/mapofwonders/auth-service/internal/middleware"
	"github.com/mapofwonders/auth-service/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("auth service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Pinger{}
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	userRepo, err := openRepository(ctx, cfg, zlog, checks, &closers)
	if err != nil {
		return err
	}

	limiter, err := newLimiter(ctx, cfg, zlog, checks, &closers)
	if err != nil {
		return err
	}

	publisher, err := newPublisher(cfg, zlog)
	if err != nil {
		return err
	}
	closers = append(closers, publisher)

	tokenService := service.NewTokenService(
		cfg.JWTSecret,
		time.Duration(cfg.TokenExpiryHours)*time.Hour,
		time.Duration(cfg.RememberMeExpiryDays)*24*time.Hour,
	)
	userService := service.NewUserService(userRepo, tokenService, limiter, publisher, zlog)
	authHandler := handler.NewAuthHandler(userService, cfg.IsProduction(), zlog)

	metrics, err := middleware.NewMetrics(middleware.MetricsOptions{Registerer: prometheus.DefaultRegisterer})
	if err != nil {
		return err
	}

	throttle := middleware.NewThrottle(float64(cfg.ThrottleRPS), cfg.ThrottleBurst)
	go throttle.Run(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:               "map-of-wonders-auth",
		DisableStartupMessage: cfg.IsProduction(),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.Logger(zlog))
	app.Use(middleware.SecurityHeaders())
	app.Use(metrics.Handler())

	handler.RegisterRoutes(app, authHandler, handler.RouteOptions{
		Throttle: throttle.Handler(),
		Health:   handler.NewHealthHandler(checks, zlog),
		Gatherer: prometheus.DefaultGatherer,
	})

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("auth service listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	if err := app.ShutdownWithTimeout(time.Duration(cfg.ShutdownTimeoutSec) * time.Second); err != nil {
		zlog.Warn("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, zlog *zap.Logger, checks map[string]handler.Pinger, closers *[]io.Closer) (domain.UserRepository, error) {
	switch cfg.DBDriver {
	case "postgres":
		if cfg.AutoMigrate {
			if err := migrateUp(cfg.DBURL, zlog); err != nil {
				return nil, err
			}
		}

		pool, err := db.NewPostgresPool(ctx, cfg.DBURL, zlog)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, closerFunc(func() error { pool.Close(); return nil }))
		checks["database"] = pool
		return pgrepo.NewPostgresRepository(pool), nil

	case "sqlite":
		sqlDB, err := db.OpenSQLite(ctx, cfg.DBURL)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, sqlDB)
		checks["database"] = handler.PingFunc(sqlDB.PingContext)
		zlog.Info("connected to sqlite", zap.String("dsn", cfg.DBURL))
		return sqliterepo.NewSQLiteRepository(sqlDB), nil

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func migrateUp(dbURL string, zlog *zap.Logger) error {
	migrator, err := db.NewMigrator(dbURL, zlog)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}

func newLimiter(ctx context.Context, cfg *config.Config, zlog *zap.Logger, checks map[string]handler.Pinger, closers *[]io.Closer) (ratelimit.Limiter, error) {
	opts := ratelimit.Options{
		MaxAttempts: cfg.LoginMaxAttempts,
		Window:      time.Duration(cfg.LoginWindowMinutes) * time.Minute,
	}

	switch cfg.RateLimitBackend {
	case "memory":
		limiter := ratelimit.NewMemoryLimiter(opts, zlog)
		go limiter.Run(ctx, time.Minute)
		return limiter, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		*closers = append(*closers, client)

		limiter := ratelimit.NewRedisLimiter(client, opts)
		if err := limiter.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		checks["redis"] = limiter
		zlog.Info("using redis login limiter", zap.String("addr", cfg.RedisAddr))
		return limiter, nil

	default:
		return nil, fmt.Errorf("unsupported RATE_LIMIT_BACKEND %q", cfg.RateLimitBackend)
	}
}

func newPublisher(cfg *config.Config, zlog *zap.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(zlog), nil
	}
	publisher, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, zlog)
	if err != nil {
		return nil, err
	}
	return publisher, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
