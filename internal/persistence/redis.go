package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/crmflow/crm-automation/internal/config"
	"github.com/crmflow/crm-automation/internal/repository"
)

const redisDialTimeout = 3 * time.Second

// Redis holds the optional client that backs cross-instance coordination:
// the round-robin cursor and the SLA sweep lock.
type Redis struct {
	Client *redis.Client
	prefix string
}

// NewRedis connects when an address is configured. An unreachable server is
// logged but not fatal; readiness reports it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR not provided; using process-local cursor and no sweep lock")
		return &Redis{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return &Redis{Client: client, prefix: strings.TrimSuffix(cfg.KeyPrefix, ":")}
}

// Enabled reports whether a client is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Key joins parts under the configured prefix.
func (r *Redis) Key(parts ...string) string {
	if r.prefix == "" {
		return strings.Join(parts, ":")
	}
	return r.prefix + ":" + strings.Join(parts, ":")
}

// AssignmentCursor returns the shared round-robin cursor, or a process-local
// one when Redis is disabled.
func (r *Redis) AssignmentCursor() repository.Cursor {
	if !r.Enabled() {
		return &repository.AtomicCursor{}
	}
	return repository.NewRedisCursor(r.Client, r.Key("assignment", "cursor"))
}

// SweepLock returns the cross-instance breach sweep lock, or nil when Redis
// is disabled.
func (r *Redis) SweepLock() repository.Locker {
	if !r.Enabled() {
		return nil
	}
	return repository.NewRedisLocker(r.Client, r.Key("sla", "sweep-lock"))
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
