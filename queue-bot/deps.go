package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fullwork/queue-bot/config"
	"fullwork/queue-bot/handlers"
	"fullwork/queue-bot/models"
	"fullwork/queue-bot/repositories"
	"fullwork/shared/database"
	"fullwork/shared/migrations"
	"fullwork/shared/redis"
	"fullwork/shared/storage"
)

type deps struct {
	users   *repositories.UserRepository
	numbers *repositories.NumberRepository
	states  handlers.StateStore
	limiter handlers.Limiter

	db    *gorm.DB
	redis *goredis.Client
	log   *zap.Logger
}

// openRepositories connects the configured document store and loads both
// documents.
func openRepositories(ctx context.Context, cfg *config.Config, log *zap.Logger) (*deps, error) {
	d := &deps{log: log}

	var store storage.Store
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		db, err := database.Open(database.Options{
			DSN:             cfg.Storage.DSN(),
			MaxIdleConns:    2,
			MaxOpenConns:    5,
			ConnMaxLifetime: time.Hour,
		}, log)
		if err != nil {
			return nil, err
		}
		d.db = db
		if err := migrations.AutoMigrate(db, log); err != nil {
			d.Close()
			return nil, err
		}
		store = database.NewDocumentStore(db)
	default:
		fs, err := storage.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	users, err := repositories.NewUserRepository(ctx, store)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load users: %w", err)
	}
	numbers, err := repositories.NewNumberRepository(ctx, store, users)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("load numbers: %w", err)
	}
	d.users, d.numbers = users, numbers
	return d, nil
}

// openDeps adds the dialog state store and the optional rate limiter.
func openDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (*deps, error) {
	d, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if cfg.State.Backend != config.BackendRedis {
		d.states = models.NewMemoryStateStore()
		return d, nil
	}

	cli, err := redis.New(ctx, cfg.State.RedisURL)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.redis = cli
	d.states = models.NewRedisStateStore(cli, cfg.StateTTL())
	if cfg.RateLimit.Limit > 0 {
		d.limiter = redis.NewRateLimiter(cli, cfg.RateLimit.Limit, cfg.RateWindow())
	}
	return d, nil
}

func (d *deps) Close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			d.log.Warn("close redis", zap.Error(err))
		}
	}
	if d.db != nil {
		if err := database.Close(d.db); err != nil {
			d.log.Warn("close database", zap.Error(err))
		}
	}
}
