package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/lead-chat-agent/internal/chatbot"
	appconfig "github.com/wolfman30/lead-chat-agent/internal/config"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildPostgresPool connects to Postgres, or returns nil when DATABASE_URL is
// unset or unreachable.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *pgxpool.Pool {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres config invalid", "error", err)
		return nil
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Warn("postgres not available", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

// BuildSessionStore persists chat sessions in Redis when a client is given,
// in process memory otherwise.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) chatbot.Store {
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.SessionTTL
	}
	if redisClient == nil {
		logger.Info("chat sessions kept in memory", "ttl", ttl)
		return chatbot.NewMemoryStoreWithTTL(ttl)
	}
	logger.Info("chat sessions persisted in redis")
	return chatbot.NewRedisStore(redisClient, ttl, otel.Tracer("leadchat.internal.chatbot.store"))
}

// BuildLeadRepository stores leads in Postgres when a pool is given.
func BuildLeadRepository(pool *pgxpool.Pool, logger *logging.Logger) leads.Repository {
	if pool == nil {
		logger.Warn("DATABASE_URL not set; leads kept in memory")
		return leads.NewInMemoryRepository()
	}
	return leads.NewPostgresRepository(pool)
}
