// Package dlock 提供分布式锁，支持 Redis、Etcd 与进程内三种后端。
//
// splittable 在建表前通过 dlock 串行化同一实体同一服务器上的建表流程。
// 单实例部署可使用 local 后端；多实例部署需要 redis 或 etcd。
//
//	redisConn, _ := connector.NewRedis(redisConfig)
//	locker, _ := dlock.New(&dlock.Config{
//	    Driver:     dlock.DriverRedis,
//	    Prefix:     "myapp:lock:",
//	    DefaultTTL: 30 * time.Second,
//	}, dlock.WithRedisConnector(redisConn), dlock.WithLogger(logger))
//
//	if err := locker.Lock(ctx, "order:db-1"); err != nil {
//	    return err
//	}
//	defer locker.Unlock(context.Background(), "order:db-1")
package dlock

import (
	"github.com/ceyewan/splitdb/xerrors"
)

// New 根据 Driver 创建 Locker
func New(cfg *Config, opts ...Option) (Locker, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.applyDefaults()

	switch cfg.Driver {
	case DriverRedis:
		if o.redisConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorNil, "redis driver requires WithRedisConnector")
		}
		return newRedis(o.redisConnector, cfg, &o)
	case DriverEtcd:
		if o.etcdConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorNil, "etcd driver requires WithEtcdConnector")
		}
		return newEtcd(o.etcdConnector, cfg, &o)
	default:
		return newLocal(cfg, &o), nil
	}
}

// NewLocal 创建进程内 Locker
func NewLocal(opts ...Option) Locker {
	l, _ := New(&Config{Driver: DriverLocal}, opts...)
	return l
}
