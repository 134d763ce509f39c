package db

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/connector"
)

// Option 配置 DB 实例的选项
type Option func(*options)

type options struct {
	logger              clog.Logger
	tracer              trace.TracerProvider
	mysqlConnector      connector.MySQLConnector
	postgresqlConnector connector.PostgreSQLConnector
	sqliteConnector     connector.SQLiteConnector
	silentMode          bool
}

// WithLogger 注入日志记录器，自动追加 "db" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("db")
		}
	}
}

// WithTracer 注入 TracerProvider，启用 otelgorm 插件
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithMySQLConnector 注入 MySQL 连接器
func WithMySQLConnector(conn connector.MySQLConnector) Option {
	return func(o *options) {
		o.mysqlConnector = conn
	}
}

// WithPostgreSQLConnector 注入 PostgreSQL 连接器
func WithPostgreSQLConnector(conn connector.PostgreSQLConnector) Option {
	return func(o *options) {
		o.postgresqlConnector = conn
	}
}

// WithSQLiteConnector 注入 SQLite 连接器
func WithSQLiteConnector(conn connector.SQLiteConnector) Option {
	return func(o *options) {
		o.sqliteConnector = conn
	}
}

// WithSilentMode 禁用 SQL 日志输出
func WithSilentMode() Option {
	return func(o *options) {
		o.silentMode = true
	}
}
