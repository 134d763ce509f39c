package dlock

import (
	"context"
	"time"

	"github.com/ceyewan/splitdb/xerrors"
)

// DriverType 定义支持的后端类型
type DriverType string

const (
	DriverRedis DriverType = "redis"
	DriverEtcd  DriverType = "etcd"
	// DriverLocal 进程内锁，只在单进程内互斥
	DriverLocal DriverType = "local"
)

// Config 组件静态配置
type Config struct {
	// Driver 选择使用的后端 (redis | etcd | local)
	Driver DriverType `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Prefix 锁 Key 的全局前缀，例如 "dlock:"
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// DefaultTTL 默认锁超时时间
	// Redis 会启动 Watchdog 自动续期；Etcd 使用 Session KeepAlive 自动续期。
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" mapstructure:"default_ttl"`

	// RetryInterval 加锁重试间隔 (仅 Lock 模式有效)
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval" mapstructure:"retry_interval"`
}

func (c *Config) setDefaults() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 10 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 100 * time.Millisecond
	}
}

func (c *Config) validate() error {
	if c == nil {
		return ErrConfigNil
	}
	switch c.Driver {
	case DriverRedis, DriverEtcd, DriverLocal:
		return nil
	case "":
		return xerrors.Wrap(xerrors.ErrInvalidInput, "dlock: driver is required")
	default:
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "dlock: unsupported driver: %s", c.Driver)
	}
}

// Locker 定义了分布式锁的核心行为
//
// 同一个 Locker 被多个 goroutine 共享时，同一 key 在进程内同样互斥：
// Lock 等待当前持有者释放，TryLock 直接返回 false。
type Locker interface {
	// Lock 阻塞式加锁
	// 如果上下文取消，返回 context.Canceled 或 context.DeadlineExceeded
	Lock(ctx context.Context, key string, opts ...LockOption) error

	// TryLock 非阻塞式尝试加锁
	// 锁已被占用返回 false, nil
	TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error)

	// Unlock 释放锁，未持有时返回 ErrLockNotHeld
	Unlock(ctx context.Context, key string) error

	// Close 关闭 Locker，释放底层资源
	// 对于 Etcd 会关闭 session，对于 Redis 和 Local 是 no-op
	Close() error
}
