package connector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/testkit"
)

func TestRedisConnectorIntegration(t *testing.T) {
	cfg := testkit.NewRedisContainerConfig(t)
	ctx := context.Background()

	conn, err := connector.NewRedis(cfg,
		connector.WithLogger(testkit.NewLogger()),
		connector.WithMeter(testkit.NewMeter(t)),
		connector.WithTracer(noop.NewTracerProvider()),
	)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Connect(ctx))
	client := conn.GetClient()
	require.NoError(t, client.SAdd(ctx, "k", "a", "b").Err())
	members, err := client.SMembers(ctx, "k").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, members)
	require.NoError(t, conn.HealthCheck(ctx))
}

func TestMySQLConnectorIntegration(t *testing.T) {
	conn := testkit.NewMySQLConnector(t)
	db := conn.GetClient()

	require.NoError(t, db.Exec("CREATE TABLE t_order_202403 (id BIGINT PRIMARY KEY)").Error)
	tables, err := db.Migrator().GetTables()
	require.NoError(t, err)
	assert.Contains(t, tables, "t_order_202403")
	assert.Equal(t, "mysql", conn.Dialect())
}

func TestPostgreSQLConnectorIntegration(t *testing.T) {
	conn := testkit.NewPostgreSQLConnector(t)
	db := conn.GetClient()

	require.NoError(t, db.Exec("CREATE TABLE t_order_202403 (id BIGINT PRIMARY KEY)").Error)
	tables, err := db.Migrator().GetTables()
	require.NoError(t, err)
	assert.Contains(t, tables, "t_order_202403")
	assert.Equal(t, "postgres", conn.Dialect())
}

func TestEtcdConnectorIntegration(t *testing.T) {
	conn := testkit.NewEtcdConnector(t)
	ctx := context.Background()

	client := conn.GetClient()
	_, err := client.Put(ctx, "/splitdb/ping", "pong")
	require.NoError(t, err)
	resp, err := client.Get(ctx, "/splitdb/ping")
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "pong", string(resp.Kvs[0].Value))

	require.NoError(t, conn.HealthCheck(ctx))
	require.NoError(t, conn.Close())
	assert.Nil(t, conn.GetClient())
}
