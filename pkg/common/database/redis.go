package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// OpenRedis connects to the reminder lock backend and pings it. The client
// is closed again when the ping fails.
func OpenRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	addr := net.JoinHostPort(cfg.RedisHost, cfg.RedisPort)
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}

	logger.Log.WithField("addr", addr).Info("Connected to Redis")
	return client, nil
}
