package dlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/xerrors"
)

var (
	unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end`)
)

type redisLocker struct {
	client  *redis.Client
	cfg     *Config
	logger  clog.Logger
	metrics *lockMetrics
	local   *keyedSemaphore

	mu    sync.Mutex
	locks map[string]*redisLockEntry
}

type redisLockEntry struct {
	key        string
	token      string
	expiration time.Duration
	renewStop  chan struct{}
	renewDone  chan struct{}
}

func newRedis(conn connector.RedisConnector, cfg *Config, o *options) (Locker, error) {
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrClientNil, "dlock")
	}
	return &redisLocker{
		client:  client,
		cfg:     cfg,
		logger:  o.logger,
		metrics: newLockMetrics(DriverRedis, o),
		local:   newKeyedSemaphore(),
		locks:   make(map[string]*redisLockEntry),
	}, nil
}

func (l *redisLocker) Lock(ctx context.Context, key string, opts ...LockOption) error {
	if err := l.local.acquire(ctx, key); err != nil {
		l.metrics.onFailed(ctx, "lock")
		return err
	}

	o := applyLockOptions(l.cfg.DefaultTTL, opts)
	for {
		ok, err := l.acquire(ctx, key, o.TTL)
		if err != nil {
			l.local.release(key)
			l.metrics.onFailed(ctx, "lock")
			return err
		}
		if ok {
			l.metrics.onAcquired(ctx, "lock")
			return nil
		}

		select {
		case <-ctx.Done():
			l.local.release(key)
			l.metrics.onFailed(ctx, "lock")
			return ctx.Err()
		case <-time.After(l.cfg.RetryInterval):
		}
	}
}

func (l *redisLocker) TryLock(ctx context.Context, key string, opts ...LockOption) (bool, error) {
	if !l.local.tryAcquire(key) {
		l.metrics.onFailed(ctx, "trylock")
		return false, nil
	}

	o := applyLockOptions(l.cfg.DefaultTTL, opts)
	ok, err := l.acquire(ctx, key, o.TTL)
	if err != nil || !ok {
		l.local.release(key)
		l.metrics.onFailed(ctx, "trylock")
		return false, err
	}
	l.metrics.onAcquired(ctx, "trylock")
	return true, nil
}

func (l *redisLocker) Unlock(ctx context.Context, key string) error {
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

	close(entry.renewStop)
	<-entry.renewDone

	res, err := unlockScript.Run(ctx, l.client, []string{l.getRedisKey(key)}, entry.token).Int64()
	if err != nil {
		return xerrors.Wrap(err, "failed to release lock")
	}
	if res == 0 {
		return xerrors.Wrapf(ErrOwnershipLost, "key: %s", key)
	}

	l.logger.DebugContext(ctx, "lock released", clog.String("key", key))
	return nil
}

// acquire 尝试一次 SET NX，成功后启动 watchdog；调用方已持有进程内互斥
func (l *redisLocker) acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	randBytes := make([]byte, 16)
	if _, err := rand.Read(randBytes); err != nil {
		return false, xerrors.Wrap(err, "failed to generate random token")
	}
	token := hex.EncodeToString(randBytes)
	redisKey := l.getRedisKey(key)

	success, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return false, xerrors.Wrap(err, "failed to acquire lock")
	}
	if !success {
		return false, nil
	}

	entry := &redisLockEntry{
		key:        key,
		token:      token,
		expiration: ttl,
		renewStop:  make(chan struct{}),
		renewDone:  make(chan struct{}),
	}
	l.mu.Lock()
	l.locks[key] = entry
	l.mu.Unlock()

	go l.watchdog(entry, redisKey)

	l.logger.DebugContext(ctx, "lock acquired", clog.String("key", key), clog.String("token", token))
	return true, nil
}

func (l *redisLocker) watchdog(entry *redisLockEntry, redisKey string) {
	defer close(entry.renewDone)

	renewInterval := entry.expiration / 3
	if renewInterval < time.Second {
		renewInterval = time.Second
	}
	ticker := time.NewTicker(renewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-entry.renewStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			res, err := renewScript.Run(ctx, l.client, []string{redisKey}, entry.token, entry.expiration.Milliseconds()).Int64()
			cancel()

			if err != nil {
				l.logger.Error("watchdog renew failed", clog.String("key", entry.key), clog.Error(err))
				return
			}
			if res == 0 {
				l.logger.Warn("watchdog lost ownership", clog.String("key", entry.key))
				return
			}
		}
	}
}

func (l *redisLocker) getRedisKey(key string) string {
	return l.cfg.Prefix + key
}

// Close Redis Locker 不拥有底层连接，因此是 no-op
func (l *redisLocker) Close() error {
	return nil
}
