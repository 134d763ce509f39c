package testkit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ceyewan/splitdb/connector"
)

// NewSQLiteConfig 返回独立的共享内存库配置，每次调用库名不同，测试之间互不可见
func NewSQLiteConfig() *connector.SQLiteConfig {
	id := NewID()
	return &connector.SQLiteConfig{
		Name: "test-sqlite-" + id,
		Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", id),
	}
}

// NewSQLiteConnector 获取已连接的 SQLite 内存库连接器，生命周期由 t.Cleanup 管理
func NewSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	return connectSQLite(t, NewSQLiteConfig())
}

// NewPersistentSQLiteConnector 获取文件型 SQLite 连接器，文件位于 t.TempDir()
func NewPersistentSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	return connectSQLite(t, &connector.SQLiteConfig{
		Name: "test-sqlite-file",
		Path: t.TempDir() + "/test.db",
	})
}

func connectSQLite(t *testing.T, cfg *connector.SQLiteConfig) connector.SQLiteConnector {
	t.Helper()
	conn, err := connector.NewSQLite(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")
	require.NoError(t, conn.Connect(context.Background()), "failed to connect to sqlite")

	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}
