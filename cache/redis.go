package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/splitdb/cache/serializer"
	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/xerrors"
)

// presenceMember 空集合的占位成员
//
// Redis 不保存空集合，SAdd 不带成员时写入该占位成员以标记 key 存在，SMembers 不返回它。
const presenceMember = "\x00"

type redisCache struct {
	client     *redis.Client
	serializer serializer.Serializer
	prefix     string
	logger     clog.Logger
	ops        opsRecorder
}

// newRedis 创建 Redis 缓存实例
func newRedis(conn connector.RedisConnector, cfg *Config, o *options) (Cache, error) {
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrap(connector.ErrClientNil, "cache")
	}

	s, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, xerrors.Wrapf(err, "serializer %q", cfg.Serializer)
	}

	return &redisCache{
		client:     client,
		serializer: s,
		prefix:     cfg.Prefix,
		logger:     o.logger,
		ops:        newOpsRecorder(DriverRedis, o),
	}, nil
}

func (c *redisCache) getKey(key string) string {
	return c.prefix + key
}

// --- 键值（Key-Value） ---

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) (err error) {
	defer func() { c.ops.record(ctx, "set", err) }()

	data, err := c.serializer.Marshal(value)
	if err != nil {
		return xerrors.Wrapf(err, "marshal value for key %s", key)
	}
	if ttl < 0 {
		ttl = 0
	}
	return xerrors.Wrapf(c.client.Set(ctx, c.getKey(key), data, ttl).Err(), "set %s", key)
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) (err error) {
	defer func() { c.ops.record(ctx, "get", err) }()

	data, err := c.client.Get(ctx, c.getKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return xerrors.Wrapf(err, "get %s", key)
	}
	return xerrors.Wrapf(c.serializer.Unmarshal(data, dest), "unmarshal value for key %s", key)
}

func (c *redisCache) Delete(ctx context.Context, key string) (err error) {
	defer func() { c.ops.record(ctx, "delete", err) }()
	return xerrors.Wrapf(c.client.Del(ctx, c.getKey(key)).Err(), "delete %s", key)
}

func (c *redisCache) Has(ctx context.Context, key string) (_ bool, err error) {
	defer func() { c.ops.record(ctx, "has", err) }()

	n, err := c.client.Exists(ctx, c.getKey(key)).Result()
	if err != nil {
		return false, xerrors.Wrapf(err, "exists %s", key)
	}
	return n > 0, nil
}

func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration) (err error) {
	defer func() { c.ops.record(ctx, "expire", err) }()

	ok, err := c.client.Expire(ctx, c.getKey(key), ttl).Result()
	if err != nil {
		return xerrors.Wrapf(err, "expire %s", key)
	}
	if !ok {
		return ErrCacheMiss
	}
	return nil
}

// --- 集合（Set） ---

func (c *redisCache) SAdd(ctx context.Context, key string, members ...string) (err error) {
	defer func() { c.ops.record(ctx, "sadd", err) }()

	args := make([]any, 0, len(members))
	for _, m := range members {
		args = append(args, m)
	}
	if len(args) == 0 {
		args = append(args, presenceMember)
	}
	err = c.client.SAdd(ctx, c.getKey(key), args...).Err()
	if err != nil && isWrongType(err) {
		return xerrors.Wrapf(ErrWrongType, "sadd %s", key)
	}
	return xerrors.Wrapf(err, "sadd %s", key)
}

func (c *redisCache) SMembers(ctx context.Context, key string) (_ []string, err error) {
	defer func() { c.ops.record(ctx, "smembers", err) }()

	raw, err := c.client.SMembers(ctx, c.getKey(key)).Result()
	if err != nil {
		if isWrongType(err) {
			return nil, xerrors.Wrapf(ErrWrongType, "smembers %s", key)
		}
		return nil, xerrors.Wrapf(err, "smembers %s", key)
	}
	members := make([]string, 0, len(raw))
	for _, m := range raw {
		if m != presenceMember {
			members = append(members, m)
		}
	}
	return members, nil
}

func (c *redisCache) SRem(ctx context.Context, key string, members ...string) (err error) {
	defer func() { c.ops.record(ctx, "srem", err) }()

	if len(members) == 0 {
		return nil
	}
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return xerrors.Wrapf(c.client.SRem(ctx, c.getKey(key), args...).Err(), "srem %s", key)
}

// Close 连接器由调用方管理，这里不关闭客户端
func (c *redisCache) Close() error {
	return nil
}

func isWrongType(err error) bool {
	var rerr redis.Error
	return errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), "WRONGTYPE")
}
