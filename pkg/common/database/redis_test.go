package database

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/nurse-etr/assistant/pkg/common/config"
	"github.com/nurse-etr/assistant/pkg/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(addr string) *config.Config {
	host, port, _ := net.SplitHostPort(addr)
	return &config.Config{RedisHost: host, RedisPort: port}
}

func TestOpenRedis(t *testing.T) {
	logger.Discard()
	mr := miniredis.RunT(t)

	client, err := OpenRedis(context.Background(), redisConfig(mr.Addr()))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestOpenRedisFailsWhenUnreachable(t *testing.T) {
	logger.Discard()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client, err := OpenRedis(context.Background(), redisConfig(addr))
	assert.Error(t, err)
	assert.Nil(t, client)
}
