package testkit

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/ceyewan/splitdb/connector"
)

// NewPostgreSQLContainerConfig 使用 testcontainers 启动 PostgreSQL 并返回配置
func NewPostgreSQLContainerConfig(t *testing.T) *connector.PostgreSQLConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("splitdb"),
		postgres.WithUsername("splitdb_user"),
		postgres.WithPassword("splitdb_password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start postgresql container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mappedPort.Port())
	require.NoError(t, err)

	return &connector.PostgreSQLConfig{
		Name:     "testcontainer-postgresql",
		Host:     host,
		Port:     port,
		Username: "splitdb_user",
		Password: "splitdb_password",
		Database: "splitdb",
		SSLMode:  "disable",
	}
}

// NewPostgreSQLConnector 获取已连接的 PostgreSQL 连接器，容器已通过 BasicWaitStrategies 就绪
func NewPostgreSQLConnector(t *testing.T) connector.PostgreSQLConnector {
	conn, err := connector.NewPostgreSQL(NewPostgreSQLContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create postgresql connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to postgresql")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
