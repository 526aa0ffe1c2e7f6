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

	"go.uber.org/zap"

	"github.com/iliyamo/authsession/internal/config"
	"github.com/iliyamo/authsession/internal/database"
	"github.com/iliyamo/authsession/internal/handler"
	"github.com/iliyamo/authsession/internal/logger"
	"github.com/iliyamo/authsession/internal/middleware"
	"github.com/iliyamo/authsession/internal/queue"
	"github.com/iliyamo/authsession/internal/repository"
	"github.com/iliyamo/authsession/internal/router"
	"github.com/iliyamo/authsession/internal/service"
	"github.com/iliyamo/authsession/internal/telemetry"
	"github.com/iliyamo/authsession/internal/utils"
)

const serviceName = "authsession"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// store is whatever backs both the user and token contracts.
type store interface {
	service.UserStore
	service.TokenStore
	handler.Pinger
}

type sqlStore struct {
	*repository.UserRepo
	*repository.TokenRepo
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       cfg.LogLevel,
		ServiceName: serviceName,
		Development: !cfg.IsProduction(),
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLog := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OtelEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		CollectorAddr:  cfg.OtelCollectorAddr,
		SampleRatio:    cfg.OtelSampleRatio,
	}); err != nil {
		appLog.Warn("tracing disabled", zap.Error(err))
	}

	st, closeStore := openStore(ctx, cfg, appLog)
	defer closeStore()

	var events service.EventPublisher
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, appLog.Named("publisher"))
		defer pub.Close()
		events = pub
		if cfg.AuditConsumerEnabled {
			consumer := queue.NewAuditConsumer(cfg.RabbitMQURL, cfg.AuditLogPath, appLog.Named("audit"))
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					appLog.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	} else {
		appLog.Info("RABBITMQ_URL not set, auth events are not published")
	}

	hasher := utils.NewPasswordHasher(cfg.Argon2(), utils.DefaultPolicy())
	codec := utils.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL, cfg.RefreshTTL)
	sessions := service.NewSessionManager(st, st, hasher, codec, events, appLog.Named("session"))

	limiter := middleware.NewTokenBucket(cfg.RateLimit, nil, appLog)
	if cfg.RateLimit.Enabled {
		if rdb := config.NewRedisClient(cfg.Redis); rdb != nil {
			defer rdb.Close()
			limiter = middleware.NewTokenBucket(cfg.RateLimit, rdb, appLog.Named("ratelimit"))
			appLog.Info("rate limiting enabled", zap.String("redis", cfg.Redis.Address()))
		} else {
			appLog.Warn("redis unreachable, rate limiting disabled", zap.String("redis", cfg.Redis.Address()))
		}
	}

	e := router.New(router.Deps{
		Auth:      handler.NewAuthHandler(cfg, sessions, appLog.Named("http")),
		Health:    handler.NewHealthHandler(st, appLog),
		Verifier:  sessions,
		RateLimit: limiter,
		Log:       appLog.Named("http"),
	})

	addr := ":" + cfg.Port
	go func() {
		appLog.Info("listening",
			zap.String("addr", addr),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("refresh_transport", cfg.RefreshTransport))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.Error("http shutdown", zap.Error(err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		appLog.Error("tracer shutdown", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, appLog *zap.Logger) (store, func()) {
	if cfg.StoreDriver == config.StoreMemory {
		appLog.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, "up"); err != nil {
			appLog.Fatal("migrations failed", zap.Error(err))
		}
		appLog.Info("migrations applied")
	}
	return sqlStore{UserRepo: repository.NewUserRepo(db), TokenRepo: repository.NewTokenRepo(db)}, func() { _ = db.Close() }
}
