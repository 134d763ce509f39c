// Package connector 提供统一的连接管理能力。
//
// 连接器拥有底层客户端的生命周期，应由应用层创建并通过 defer 关闭；
// cache、dlock、db 等组件只借用连接器，不调用 Close()。
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"},
//		connector.WithLogger(logger))
//	if err != nil {
//		panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		panic(err)
//	}
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"gorm.io/gorm"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接，幂等
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 发送测试请求并更新健康状态缓存
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次检查的结果，无阻塞
	IsHealthy() bool

	// Name 连接器实例名称，用于日志和指标
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Connect 之前或 Close 之后可能为 nil
	GetClient() T
}

// RedisConnector Redis 连接器
type RedisConnector interface {
	TypedConnector[*redis.Client]
}

// DatabaseConnector 基于 GORM 的关系型数据库连接器
type DatabaseConnector interface {
	TypedConnector[*gorm.DB]
	// Dialect 返回 gorm 方言名：mysql、postgres、sqlite
	Dialect() string
}

// MySQLConnector MySQL 连接器
type MySQLConnector interface {
	DatabaseConnector
}

// PostgreSQLConnector PostgreSQL 连接器
type PostgreSQLConnector interface {
	DatabaseConnector
}

// SQLiteConnector SQLite 连接器，支持内存库和文件库，适合测试和单机场景
type SQLiteConnector interface {
	DatabaseConnector
}

// EtcdConnector Etcd 连接器
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
