package testkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/splitdb/connector"
)

// NewRedisContainerConfig 使用 testcontainers 启动 Redis 并返回配置，容器由 t.Cleanup 回收
func NewRedisContainerConfig(t *testing.T) *connector.RedisConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return &connector.RedisConfig{
		Name: "testcontainer-redis",
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	}
}

// NewRedisConnector 获取已连接的 Redis 连接器（基于 testcontainers）
func NewRedisConnector(t *testing.T) connector.RedisConnector {
	conn, err := connector.NewRedis(NewRedisContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to redis")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

// FlushRedis 清空当前 Redis 数据库
func FlushRedis(t *testing.T, client *redis.Client) {
	require.NoError(t, client.FlushDB(context.Background()).Err(), "failed to flush redis")
}
