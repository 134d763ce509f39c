// Package cache 提供键值与集合两类缓存操作，支持 Redis 与进程内内存两种驱动。
//
// splittable 的表目录基于集合操作（SAdd/SMembers/Has）实现，未配置外部缓存时
// 退化为内存驱动，只保证单进程语义。
//
// 基本使用：
//
//	redisConn, _ := connector.NewRedis(redisConfig)
//	c, _ := cache.New(&cache.Config{
//	    Driver: cache.DriverRedis,
//	    Prefix: "orders:",
//	}, cache.WithRedisConnector(redisConn), cache.WithLogger(logger))
//
//	_ = c.SAdd(ctx, "tables", "t_order_202403")
//	tables, _ := c.SMembers(ctx, "tables")
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/splitdb/xerrors"
)

// Driver 缓存驱动类型
type Driver string

const (
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// Cache 缓存组件的核心能力
type Cache interface {
	// --- Key-Value ---
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get 不存在时返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// --- Set ---
	// SAdd 向集合添加成员；members 为空时只标记该 key 存在
	SAdd(ctx context.Context, key string, members ...string) error
	// SMembers 返回集合成员，key 不存在时返回空切片
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...string) error

	// --- Utility ---
	Close() error
}

// New 根据 Driver 创建缓存实例
//
// redis 驱动需要通过 WithRedisConnector 注入连接器，连接器由调用方负责关闭。
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	switch cfg.Driver {
	case DriverMemory:
		return newStandalone(cfg, &opt)
	case DriverRedis:
		if opt.redisConn == nil {
			return nil, ErrRedisConnectorRequired
		}
		return newRedis(opt.redisConn, cfg, &opt)
	default:
		return nil, xerrors.Wrapf(ErrUnsupportedDriver, "driver %q", cfg.Driver)
	}
}

// NewStandalone 创建内存缓存
//
//	c, _ := cache.NewStandalone(&cache.StandaloneConfig{Capacity: 10000})
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Cache, error) {
	return New(&Config{Driver: DriverMemory, Standalone: cfg}, opts...)
}
