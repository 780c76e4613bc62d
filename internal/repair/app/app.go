// Package app wires the repair services from configuration. Both the HTTP
// server and repairctl start from here.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bitfantasy/nimo-repair/internal/config"
	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
	"github.com/bitfantasy/nimo-repair/internal/repair/events"
	"github.com/bitfantasy/nimo-repair/internal/repair/report"
	"github.com/bitfantasy/nimo-repair/internal/repair/repository"
	"github.com/bitfantasy/nimo-repair/internal/repair/service"
	"github.com/bitfantasy/nimo-repair/internal/repair/sse"
	"github.com/bitfantasy/nimo-repair/internal/shared/mailer"
	"github.com/bitfantasy/nimo-repair/internal/shared/storage"
)

// App holds the live collaborators.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Hub      *sse.Hub
	Repos    *repository.Repositories
	Services *service.Services
}

// InitLogger 初始化日志
func InitLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func gormLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// InitDatabase 初始化数据库
func InitDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(gormLevel(logLevel)),
		TranslateError: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

// InitRedis returns nil when no host is configured or the server does not
// answer; callers treat Redis as optional.
func InitRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) *redis.Client {
	if !cfg.Enabled() {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis not available, events stay local", zap.Error(err))
		rdb.Close()
		return nil
	}
	return rdb
}

// New connects everything. migrate runs AutoMigrate first.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*App, error) {
	db, err := InitDatabase(cfg.Database, cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := entity.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: log, DB: db, Hub: sse.NewHub(log)}
	a.Redis = InitRedis(ctx, cfg.Redis, log)

	var publisher events.Publisher = events.NewHubPublisher(a.Hub)
	if a.Redis != nil {
		publisher = events.NewRedisPublisher(a.Redis)
	}

	store, err := storage.New(ctx, cfg.MinIO)
	if err != nil {
		log.Warn("MinIO not available, reports and signatures are not archived", zap.Error(err))
		store = storage.Nop{}
	}

	a.Repos = repository.NewRepositories(db)
	a.Services, err = service.NewServices(ctx, service.Deps{
		Repos:     a.Repos,
		Config:    cfg,
		Logger:    log,
		Redis:     a.Redis,
		Publisher: publisher,
		Mailer:    mailer.New(cfg.SMTP, log),
		Store:     store,
		Renderer:  report.NewPDF(cfg.Repair.CompanyName, cfg.Repair.BaseURL, cfg.Repair.CurrencyLocale),
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Subscribe feeds events published by any instance into the local hub. It
// blocks until ctx is done; without Redis it returns at once.
func (a *App) Subscribe(ctx context.Context) {
	if a.Redis == nil {
		return
	}
	events.Subscribe(ctx, a.Redis, a.Hub, a.Logger)
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
}
