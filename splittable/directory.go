package splittable

import (
	"context"

	"github.com/ceyewan/splitdb/cache"
)

// Directory 基于缓存的表目录，记录 (实体, server) 下已知存在的物理表
//
// 每次调用都直接读写缓存，不在进程内保留副本。
type Directory struct {
	cache     cache.Cache
	namespace string
}

// NewDirectory 创建表目录
func NewDirectory(c cache.Cache, namespace string) *Directory {
	return &Directory{cache: c, namespace: namespace}
}

// Key 返回实体在 server 上的目录 Key
func (d *Directory) Key(entity, server string) string {
	return d.namespace + entity + ":" + server
}

// Exists 报告目录是否已经被填充过（即使为空）
func (d *Directory) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := d.cache.Has(ctx, key)
	if err != nil {
		return false, withCause(ErrCacheUnavailable, err, "check directory %s", key)
	}
	return ok, nil
}

// Members 返回目录中的表名，目录不存在时返回空集合
func (d *Directory) Members(ctx context.Context, key string) ([]string, error) {
	members, err := d.cache.SMembers(ctx, key)
	if err != nil {
		return nil, withCause(ErrCacheUnavailable, err, "read directory %s", key)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// Replace 用最新探测结果更新目录
//
// 以追加方式写入，members 为空时也会标记目录已填充。
func (d *Directory) Replace(ctx context.Context, key string, members []string) error {
	if err := d.cache.SAdd(ctx, key, members...); err != nil {
		return withCause(ErrCacheUnavailable, err, "update directory %s", key)
	}
	return nil
}
