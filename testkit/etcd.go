package testkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	tcetcd "github.com/testcontainers/testcontainers-go/modules/etcd"

	"github.com/ceyewan/splitdb/connector"
)

// NewEtcdContainerConfig 使用 testcontainers 启动单节点 etcd 并返回配置
func NewEtcdContainerConfig(t *testing.T) *connector.EtcdConfig {
	SkipIfShort(t)
	ctx := context.Background()

	container, err := tcetcd.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.17")
	require.NoError(t, err, "failed to start etcd container")
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "2379/tcp")
	require.NoError(t, err)

	return &connector.EtcdConfig{
		Name:      "testcontainer-etcd",
		Endpoints: []string{fmt.Sprintf("%s:%s", host, port.Port())},
	}
}

// NewEtcdConnector 获取已连接的 Etcd 连接器（基于 testcontainers）
func NewEtcdConnector(t *testing.T) connector.EtcdConnector {
	conn, err := connector.NewEtcd(NewEtcdContainerConfig(t), connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create etcd connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to etcd")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
