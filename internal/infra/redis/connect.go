package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/listenroom/config"
	pkgLog "github.com/vogiaan1904/listenroom/pkg/logger"
	pkgRedis "github.com/vogiaan1904/listenroom/pkg/redis"
)

const pingBackoff = 500 * time.Millisecond

// Connect pings until Redis answers, up to MaxRetries extra attempts with a
// linear backoff.
func Connect(ctx context.Context, cfg config.RedisConfig, l pkgLog.Logger) (*redis.Client, error) {
	cli := pkgRedis.NewClient(cfg)

	var err error
	for attempt := 0; attempt <= max(cfg.MaxRetries, 0); attempt++ {
		if attempt > 0 {
			l.Warnf(ctx, "Redis at %s not ready (attempt %d): %v", cfg.Addr, attempt, err)
			select {
			case <-ctx.Done():
				cli.Close()
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * pingBackoff):
			}
		}

		if err = cli.Ping(ctx).Err(); err == nil {
			l.Infof(ctx, "Connected to Redis at %s db=%d", cfg.Addr, cfg.DB)
			return cli, nil
		}
	}

	cli.Close()
	return nil, fmt.Errorf("failed to ping Redis: %w", err)
}

func Disconnect(ctx context.Context, cli *redis.Client, l pkgLog.Logger) {
	if cli == nil {
		return
	}

	if err := cli.Close(); err != nil {
		l.Warnf(ctx, "Failed to close Redis connection: %v", err)
		return
	}

	l.Info(ctx, "Connection to Redis closed.")
}
