package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"textanalysis/internal/config"
	"textanalysis/internal/logger"
	"textanalysis/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
	// ConnectPolicy governs ping retries while a database is still starting.
	ConnectPolicy retry.Policy
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config:        cfg,
		Logger:        log,
		ConnectPolicy: retry.DefaultPolicy(),
	}
}

func (dc *DatabaseConnector) ping(ctx context.Context, name string, fn func() error) error {
	return retry.RetryWithCallback(ctx, dc.ConnectPolicy, fn, func(attempt int, err error, next time.Duration) {
		dc.Logger.Warnw("Database not reachable yet, retrying",
			"database", name,
			"attempt", attempt,
			"next_retry_in", next,
			"error", err,
		)
	})
}

// InitRedis returns nil, nil when no Redis host is configured.
func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	if dc.Config.Database.Redis.Host == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", dc.Config.Database.Redis.Host, dc.Config.Database.Redis.Port),
		Password: dc.Config.Database.Redis.Password,
		DB:       dc.Config.Database.Redis.DB,
	})

	if err := dc.ping(ctx, "redis", func() error { return rdb.Ping(ctx).Err() }); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Info("Redis connected successfully")
	return rdb, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	cfg := dc.Config.Database.MongoDB

	mongoOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		mongoOpts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}

	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	err = dc.ping(ctx, "mongodb", func() error {
		pingCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}
		return mongoClient.Ping(pingCtx, nil)
	})
	if err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected successfully",
		"database", cfg.Database,
		"collection", cfg.Collection,
	)
	return mongoClient, nil
}

// ShutdownDatabases closes Redis before MongoDB, the reverse of startup.
func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, redis *redis.Client, mongo *mongo.Client) []error {
	var errs []error

	if redis != nil {
		if err := redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if mongo != nil {
		if err := mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
