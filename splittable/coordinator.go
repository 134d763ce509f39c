package splittable

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/dlock"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

const (
	createLockPrefix = "splittable:create:"
	releaseTimeout   = 5 * time.Second
)

// Coordinator 按实体串行化建表过程
//
// 锁的作用范围取决于 Locker：进程内锁只在本进程互斥，redis/etcd 锁跨进程互斥。
type Coordinator struct {
	locker   dlock.Locker
	timeout  time.Duration
	logger   clog.Logger
	lockWait metrics.Histogram
}

// NewCoordinator 创建建表协调器，timeout 为等待锁的最长时间
func NewCoordinator(locker dlock.Locker, timeout time.Duration) *Coordinator {
	h, _ := metrics.Discard().Histogram(MetricLockWaitDuration, "")
	return &Coordinator{
		locker:   locker,
		timeout:  timeout,
		logger:   clog.Discard(),
		lockWait: h,
	}
}

// Acquire 获取实体的建表锁
//
// 超时返回 ErrLockTimeout；ctx 被取消时返回 ctx 的错误。
func (c *Coordinator) Acquire(ctx context.Context, entity string) (*CreateLock, error) {
	key := createLockPrefix + entity
	start := time.Now()

	lockCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.locker.Lock(lockCtx, key)
	c.lockWait.Record(ctx, time.Since(start).Seconds(), metrics.L("entity", entity))

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if xerrors.Is(err, context.DeadlineExceeded) {
			c.logger.WarnContext(ctx, "create lock timeout",
				clog.String("entity", entity), clog.Duration("timeout", c.timeout))
			return nil, xerrors.Wrapf(ErrLockTimeout, "entity %s waited %s", entity, c.timeout)
		}
		return nil, xerrors.Wrapf(err, "acquire create lock for %s", entity)
	}

	c.logger.DebugContext(ctx, "create lock acquired",
		clog.String("entity", entity), clog.Duration("wait", time.Since(start)))
	return &CreateLock{coordinator: c, key: key, entity: entity}, nil
}

// WithCreateLock 持有实体的建表锁执行 fn，fn 返回或 panic 时都会释放锁
func (c *Coordinator) WithCreateLock(ctx context.Context, entity string, fn func(ctx context.Context) error) error {
	lock, err := c.Acquire(ctx, entity)
	if err != nil {
		return err
	}
	defer lock.Release()
	return fn(ctx)
}

// CreateLock 已获取的建表锁
type CreateLock struct {
	coordinator *Coordinator
	key         string
	entity      string
	once        sync.Once
	err         error
}

// Release 释放锁，可重复调用
//
// 使用独立的 context，调用方的 ctx 已取消时也能释放。
func (l *CreateLock) Release() error {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.coordinator.locker.Unlock(ctx, l.key); err != nil {
			l.coordinator.logger.Error("release create lock failed",
				clog.String("entity", l.entity), clog.Error(err))
			l.err = err
		}
	})
	return l.err
}
