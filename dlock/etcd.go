package dlock

import (
	"context"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/xerrors"
)

type etcdLocker struct {
	client  *clientv3.Client
	session *concurrency.Session
	cfg     *Config
	logger  clog.Logger
	metrics *lockMetrics
	local   *keyedSemaphore

	mu    sync.Mutex
	locks map[string]*etcdLockEntry
}

type etcdLockEntry struct {
	mutex   *concurrency.Mutex
	session *concurrency.Session
	// ownSession 为 true 时 session 是按 TTL 单独创建的，解锁后关闭
	ownSession bool
}

func newEtcd(conn connector.EtcdConnector, cfg *Config, o *options) (Locker, error) {
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrClientNil, "dlock")
	}

	// 默认 session 通过 KeepAlive 自动续期
	session, err := concurrency.NewSession(client, concurrency.WithTTL(ttlSeconds(cfg.DefaultTTL)))
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create etcd session")
	}

	return &etcdLocker{
		client:  client,
		session: session,
		cfg:     cfg,
		logger:  o.logger,
		metrics: newLockMetrics(DriverEtcd, o),
		local:   newKeyedSemaphore(),
		locks:   make(map[string]*etcdLockEntry),
	}, nil
}

func (l *etcdLocker) Lock(ctx context.Context, key string, opts ...LockOption) error {
	if err := l.local.acquire(ctx, key); err != nil {
		l.metrics.onFailed(ctx, "lock")
		return err
	}
	if err := l.lock(ctx, key, false, opts); err != nil {
		l.local.release(key)
		l.metrics.onFailed(ctx, "lock")
		return err
	}
	l.metrics.onAcquired(ctx, "lock")
	return nil
}

func (l *etcdLocker) TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error) {
	if !l.local.tryAcquire(key) {
		l.metrics.onFailed(ctx, "trylock")
		return false, nil
	}
	if err := l.lock(ctx, key, true, opts); err != nil {
		l.local.release(key)
		l.metrics.onFailed(ctx, "trylock")
		if xerrors.Is(err, concurrency.ErrLocked) {
			return false, nil
		}
		return false, err
	}
	l.metrics.onAcquired(ctx, "trylock")
	return true, nil
}

func (l *etcdLocker) lock(ctx context.Context, key string, try bool, opts []LockOption) error {
	o := applyLockOptions(l.cfg.DefaultTTL, opts)

	session := l.session
	ownSession := o.TTL != l.cfg.DefaultTTL
	if ownSession {
		var err error
		session, err = concurrency.NewSession(l.client, concurrency.WithTTL(ttlSeconds(o.TTL)))
		if err != nil {
			return xerrors.Wrap(err, "failed to create etcd session")
		}
	}

	mutex := concurrency.NewMutex(session, l.getEtcdKey(key))
	var err error
	if try {
		err = mutex.TryLock(ctx)
	} else {
		err = mutex.Lock(ctx)
	}
	if err != nil {
		if ownSession {
			_ = session.Close()
		}
		if xerrors.Is(err, concurrency.ErrLocked) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return xerrors.Wrap(err, "failed to lock")
	}

	l.mu.Lock()
	l.locks[key] = &etcdLockEntry{mutex: mutex, session: session, ownSession: ownSession}
	l.mu.Unlock()

	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key))
	return nil
}

func (l *etcdLocker) Unlock(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, exists := l.locks[key]
	if !exists {
		l.mu.Unlock()
		return xerrors.Wrapf(ErrLockNotHeld, "key: %s", key)
	}
	delete(l.locks, key)
	l.mu.Unlock()

	since, _ := l.local.release(key)
	defer l.metrics.onReleased(ctx, since)

	if err := entry.mutex.Unlock(ctx); err != nil {
		return xerrors.Wrap(err, "failed to unlock")
	}
	if entry.ownSession {
		_ = entry.session.Close()
	}

	l.logger.DebugContext(ctx, "lock released", clog.String("key", key))
	return nil
}

func (l *etcdLocker) getEtcdKey(key string) string {
	return l.cfg.Prefix + key
}

// Close 关闭默认 session，其持有的锁随 lease 撤销一并释放
func (l *etcdLocker) Close() error {
	return l.session.Close()
}

func ttlSeconds(d time.Duration) int {
	s := int(d.Seconds())
	if s < 1 {
		s = 1
	}
	return s
}
