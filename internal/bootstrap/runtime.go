// Package bootstrap wires the shared runtime used by both binaries: config,
// tracing, database, cache, repositories and the auto-post engine. The server
// mounts an HTTP surface on top of it; the poller drives the engine directly.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"postpilot/internal/cache"
	"postpilot/internal/config"
	"postpilot/internal/database"
	"postpilot/internal/engine"
	"postpilot/internal/middleware"
	"postpilot/internal/observability"
	"postpilot/internal/publish"
	"postpilot/internal/repository"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Runtime holds the shared application dependencies.
type Runtime struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Posts  repository.ScheduledPostRepository
	Users  repository.UserRepository
	Engine *engine.Engine

	shutdownTracing func(context.Context) error
}

// Init loads configuration and builds the full runtime.
func Init(serviceName string) (*Runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)

	middleware.InitMiddleware(cfg)

	posts := repository.NewScheduledPostRepository(db)
	users := repository.NewUserRepository(db)

	publishTimeout := time.Duration(cfg.PublishTimeoutSeconds) * time.Second
	publisher := publish.NewLinkedInClient(cfg.LinkedInAPIBase, publishTimeout)
	eng := engine.NewEngine(posts, users, publisher, publishTimeout)

	return &Runtime{
		Config:          cfg,
		DB:              db,
		Redis:           cache.GetClient(),
		Posts:           posts,
		Users:           users,
		Engine:          eng,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Close releases the runtime's backing connections.
func (r *Runtime) Close(ctx context.Context) error {
	if r.shutdownTracing != nil {
		if err := r.shutdownTracing(ctx); err != nil {
			middleware.Logger.Warn("tracing shutdown failed", "error", err.Error())
		}
	}

	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			middleware.Logger.Warn("redis close failed", "error", err.Error())
		}
	}

	if r.DB != nil {
		if sqlDB, err := r.DB.DB(); err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}
