package testkit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/ceyewan/splitdb/connector"
)

// NewMySQLContainerConfig 使用 testcontainers 启动 MySQL 并返回配置，容器由 t.Cleanup 回收
func NewMySQLContainerConfig(t *testing.T) *connector.MySQLConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := mysql.Run(ctx,
		"mysql:8.0",
		mysql.WithDatabase("splitdb"),
		mysql.WithUsername("splitdb_user"),
		mysql.WithPassword("splitdb_password"),
	)
	require.NoError(t, err, "failed to start mysql container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &connector.MySQLConfig{
		Name:     "testcontainer-mysql",
		Host:     host,
		Port:     port,
		Username: "splitdb_user",
		Password: "splitdb_password",
		Database: "splitdb",
		PoolConfig: connector.PoolConfig{
			MaxIdleConns: 2,
			MaxOpenConns: 10,
		},
	}
}

// NewMySQLConnector 获取已连接的 MySQL 连接器
//
// MySQL 容器端口就绪早于服务可用，这里在 60s 内重试 Connect。
func NewMySQLConnector(t *testing.T) connector.MySQLConnector {
	conn, err := connector.NewMySQL(NewMySQLContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create mysql connector")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for {
		if err = conn.Connect(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			require.NoError(t, err, "timeout waiting for mysql to be ready")
		case <-time.After(2 * time.Second):
		}
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
