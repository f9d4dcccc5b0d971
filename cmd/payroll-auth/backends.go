package main

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/layer-3/payroll-auth/adapters/events"
	"github.com/layer-3/payroll-auth/adapters/store"
	"github.com/layer-3/payroll-auth/adapters/users"
	"github.com/layer-3/payroll-auth/internal/config"
	"github.com/layer-3/payroll-auth/internal/database"
	"github.com/layer-3/payroll-auth/ports"
)

// backends holds the storage and messaging adapters picked by configuration
type backends struct {
	nonces   ports.NonceStore
	limiter  ports.RateLimiter
	sessions ports.SessionStore
	users    ports.UserDirectory
	events   ports.EventPublisher

	closers []func() error
}

func newBackends(ctx context.Context, cfg *config.Config, clk ports.Clock, logr *zap.Logger) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		b.closers = append(b.closers, redisClient.Close)

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	var db *sqlx.DB
	if cfg.NeedsPostgres() {
		db, err = database.NewPostgres(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		b.closers = append(b.closers, db.Close)

		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
	}

	switch cfg.Storage.EphemeralBackend {
	case config.BackendRedis:
		b.nonces = store.NewRedisNonceStore(redisClient)
		b.limiter = store.NewRedisRateLimiter(redisClient, cfg.RateLimit.Window, cfg.RateLimit.Max)
	default:
		b.nonces = store.NewMemoryNonceStore()
		b.limiter = store.NewMemoryRateLimiter(clk, cfg.RateLimit.Window, cfg.RateLimit.Max)
	}

	switch cfg.Storage.SessionBackend {
	case config.BackendRedis:
		b.sessions = store.NewRedisSessionStore(redisClient)
	case config.BackendPostgres:
		b.sessions = store.NewPostgresSessionStore(db)
	default:
		b.sessions = store.NewMemorySessionStore()
	}

	switch cfg.Storage.UsersBackend {
	case config.BackendPostgres:
		b.users = users.NewPostgresDirectory(db)
	default:
		b.users = users.NewMemoryDirectory()
	}

	publisher, err := newPublisher(cfg, redisClient)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		b.events = events.NewNoopPublisher()
	} else {
		b.closers = append(b.closers, publisher.Close)
		b.events = events.NewWatermillPublisher(publisher, cfg.Events.TopicPrefix)
	}

	logr.Debug("backends ready")
	return b, nil
}

func newPublisher(cfg *config.Config, redisClient *redis.Client) (message.Publisher, error) {
	wmLogger := watermill.NewStdLogger(false, false)

	switch cfg.Events.Backend {
	case config.BackendRedis:
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: redisClient,
			},
			wmLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		return publisher, nil
	default:
		return nil, nil
	}
}

// Close releases the backends in reverse order of creation
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}
