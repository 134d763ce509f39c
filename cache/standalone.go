package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/splitdb/cache/serializer"
	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/xerrors"
)

// defaultTTL 未指定 TTL 时使用的过期时间（100 年，视为永久）
const defaultTTL = 24 * 365 * 100 * time.Hour

// entry 内存缓存条目，data 与 set 二选一
type entry struct {
	data []byte
	set  map[string]struct{}
}

func (e *entry) isSet() bool {
	return e.set != nil
}

type standaloneCache struct {
	// mu 保护集合条目的读-改-写
	mu         sync.Mutex
	cache      *otter.Cache[string, *entry]
	serializer serializer.Serializer
	prefix     string
	logger     clog.Logger
	ops        opsRecorder
}

// newStandalone 创建单机内存缓存实例
func newStandalone(cfg *Config, o *options) (Cache, error) {
	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, xerrors.Wrapf(err, "serializer %q", cfg.Serializer)
	}

	// 写入过期策略与 Redis TTL 语义一致：读取不会重置 TTL
	cache, err := otter.New(&otter.Options[string, *entry]{
		MaximumSize:      cfg.Standalone.Capacity,
		StatsRecorder:    stats.NewCounter(),
		ExpiryCalculator: otter.ExpiryWriting[string, *entry](defaultTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}

	return &standaloneCache{
		cache:      cache,
		serializer: s,
		prefix:     cfg.Prefix,
		logger:     o.logger,
		ops:        newOpsRecorder(DriverMemory, o),
	}, nil
}

func (c *standaloneCache) getKey(key string) string {
	return c.prefix + key
}

// --- 键值（Key-Value） ---

// Set 值经序列化后保存，读取方拿到的是副本
func (c *standaloneCache) Set(ctx context.Context, key string, value any, ttl time.Duration) (err error) {
	defer func() { c.ops.record(ctx, "set", err) }()

	data, err := c.serializer.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "marshal value for key %s", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.getKey(key)
	c.cache.Set(k, &entry{data: data})
	if ttl > 0 {
		c.cache.SetExpiresAfter(k, ttl)
	}
	return nil
}

func (c *standaloneCache) Get(ctx context.Context, key string, dest any) (err error) {
	defer func() { c.ops.record(ctx, "get", err) }()

	e, ok := c.cache.GetIfPresent(c.getKey(key))
	if !ok {
		return ErrCacheMiss
	}
	if e.isSet() {
		return xerrors.Wrapf(ErrWrongType, "get %s", key)
	}
	return xerrors.Wrapf(c.serializer.Unmarshal(e.data, dest), "unmarshal value for key %s", key)
}

func (c *standaloneCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	c.cache.Invalidate(c.getKey(key))
	c.mu.Unlock()
	c.ops.record(ctx, "delete", nil)
	return nil
}

func (c *standaloneCache) Has(ctx context.Context, key string) (bool, error) {
	_, ok := c.cache.GetIfPresent(c.getKey(key))
	c.ops.record(ctx, "has", nil)
	return ok, nil
}

func (c *standaloneCache) Expire(ctx context.Context, key string, ttl time.Duration) (err error) {
	defer func() { c.ops.record(ctx, "expire", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.getKey(key)
	if _, ok := c.cache.GetIfPresent(k); !ok {
		return ErrCacheMiss
	}
	if ttl <= 0 {
		c.cache.Invalidate(k)
		return nil
	}
	c.cache.SetExpiresAfter(k, ttl)
	return nil
}

// --- 集合（Set） ---

// SAdd members 为空时创建空集合，Has 随后返回 true
func (c *standaloneCache) SAdd(ctx context.Context, key string, members ...string) (err error) {
	defer func() { c.ops.record(ctx, "sadd", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.getKey(key)
	e, ok := c.cache.GetIfPresent(k)
	switch {
	case !ok:
		e = &entry{set: make(map[string]struct{}, len(members))}
		c.cache.Set(k, e)
	case !e.isSet():
		return xerrors.Wrapf(ErrWrongType, "sadd %s", key)
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

func (c *standaloneCache) SMembers(ctx context.Context, key string) (_ []string, err error) {
	defer func() { c.ops.record(ctx, "smembers", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache.GetIfPresent(c.getKey(key))
	if !ok {
		return []string{}, nil
	}
	if !e.isSet() {
		return nil, xerrors.Wrapf(ErrWrongType, "smembers %s", key)
	}
	members := make([]string, 0, len(e.set))
	for m := range e.set {
		members = append(members, m)
	}
	sort.Strings(members)
	return members, nil
}

func (c *standaloneCache) SRem(ctx context.Context, key string, members ...string) (err error) {
	defer func() { c.ops.record(ctx, "srem", err) }()

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache.GetIfPresent(c.getKey(key))
	if !ok {
		return nil
	}
	if !e.isSet() {
		return xerrors.Wrapf(ErrWrongType, "srem %s", key)
	}
	for _, m := range members {
		delete(e.set, m)
	}
	return nil
}

func (c *standaloneCache) Close() error {
	c.cache.StopAllGoroutines()
	return nil
}
