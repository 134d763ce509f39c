package dlock

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/xerrors"
)

// keyedSemaphore 按 key 划分的进程内互斥量，每个 key 对应一个容量为 1 的信号量
type keyedSemaphore struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch    chan struct{}
	refs  int // 持有者与等待者数量，归零时回收
	since time.Time
}

func newKeyedSemaphore() *keyedSemaphore {
	return &keyedSemaphore{slots: make(map[string]*slot)}
}

func (s *keyedSemaphore) ref(key string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{ch: make(chan struct{}, 1)}
		s.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (s *keyedSemaphore) unref(key string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, key)
	}
}

func (s *keyedSemaphore) mark(sl *slot) {
	s.mu.Lock()
	sl.since = time.Now()
	s.mu.Unlock()
}

// acquire 等待 key 空闲，ctx 结束时返回 ctx.Err()
func (s *keyedSemaphore) acquire(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sl := s.ref(key)
	select {
	case sl.ch <- struct{}{}:
		s.mark(sl)
		return nil
	case <-ctx.Done():
		s.unref(key, sl)
		return ctx.Err()
	}
}

func (s *keyedSemaphore) tryAcquire(key string) bool {
	sl := s.ref(key)
	select {
	case sl.ch <- struct{}{}:
		s.mark(sl)
		return true
	default:
		s.unref(key, sl)
		return false
	}
}

// release 释放 key，返回加锁时间；未持有时 ok 为 false
func (s *keyedSemaphore) release(key string) (since time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, exists := s.slots[key]
	if !exists {
		return time.Time{}, false
	}
	select {
	case <-sl.ch:
	default:
		return time.Time{}, false
	}
	since = sl.since
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, key)
	}
	return since, true
}

// localLocker 只在进程内互斥，适用于单实例部署和测试
type localLocker struct {
	cfg     *Config
	logger  clog.Logger
	metrics *lockMetrics
	sem     *keyedSemaphore
}

func newLocal(cfg *Config, o *options) *localLocker {
	return &localLocker{
		cfg:     cfg,
		logger:  o.logger,
		metrics: newLockMetrics(DriverLocal, o),
		sem:     newKeyedSemaphore(),
	}
}

// Lock TTL 在进程内无意义，忽略
func (l *localLocker) Lock(ctx context.Context, key string, _ ...LockOption) error {
	if err := l.sem.acquire(ctx, l.cfg.Prefix+key); err != nil {
		l.metrics.onFailed(ctx, "lock")
		return err
	}
	l.metrics.onAcquired(ctx, "lock")
	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key))
	return nil
}

func (l *localLocker) TryLock(ctx context.Context, key string, _ ...LockOption) (bool, error) {
	if !l.sem.tryAcquire(l.cfg.Prefix + key) {
		l.metrics.onFailed(ctx, "trylock")
		return false, nil
	}
	l.metrics.onAcquired(ctx, "trylock")
	return true, nil
}

func (l *localLocker) Unlock(ctx context.Context, key string) error {
	since, ok := l.sem.release(l.cfg.Prefix + key)
	if !ok {
		return xerrors.Wrapf(ErrLockNotHeld, "key: %s", key)
	}
	l.metrics.onReleased(ctx, since)
	l.logger.DebugContext(ctx, "lock released", clog.String("key", key))
	return nil
}

func (l *localLocker) Close() error {
	return nil
}
