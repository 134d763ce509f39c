package splittable

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/splitdb/cache"
)

// fakeProbe 内存中的表结构，记录调用次数
type fakeProbe struct {
	mu          sync.Mutex
	tables      map[string]map[string]struct{}
	listCalls   int
	createCalls int
	created     [][]string
	createErr   error
	createDelay time.Duration
	onCreate    func()
}

func newFakeProbe(server string, tables ...string) *fakeProbe {
	p := &fakeProbe{tables: make(map[string]map[string]struct{})}
	p.add(server, tables...)
	return p
}

func (p *fakeProbe) add(server string, tables ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tables[server] == nil {
		p.tables[server] = make(map[string]struct{})
	}
	for _, t := range tables {
		p.tables[server][t] = struct{}{}
	}
}

func (p *fakeProbe) ListTables(ctx context.Context, server string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	out := make([]string, 0, len(p.tables[server]))
	for t := range p.tables[server] {
		out = append(out, t)
	}
	return out, nil
}

func (p *fakeProbe) CreateTables(ctx context.Context, server string, model any, tables []string) error {
	if p.onCreate != nil {
		p.onCreate()
	}
	if p.createDelay > 0 {
		time.Sleep(p.createDelay)
	}
	p.mu.Lock()
	p.createCalls++
	p.created = append(p.created, append([]string(nil), tables...))
	err := p.createErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	p.add(server, tables...)
	return nil
}

func (p *fakeProbe) calls() (list, create int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls, p.createCalls
}

// gatedProbe 列表探测阻塞到 release 关闭，进入探测时通知 entered
type gatedProbe struct {
	*fakeProbe
	entered chan struct{}
	release chan struct{}
}

func newGatedProbe(server string, tables ...string) *gatedProbe {
	return &gatedProbe{
		fakeProbe: newFakeProbe(server, tables...),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
}

func (p *gatedProbe) ListTables(ctx context.Context, server string) ([]string, error) {
	select {
	case p.entered <- struct{}{}:
	default:
	}
	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return p.fakeProbe.ListTables(ctx, server)
}

var errCacheDown = errors.New("connection refused")

// brokenCache 所有操作都失败
type brokenCache struct{}

func (brokenCache) Set(context.Context, string, any, time.Duration) error { return errCacheDown }
func (brokenCache) Get(context.Context, string, any) error                { return errCacheDown }
func (brokenCache) Delete(context.Context, string) error                  { return errCacheDown }
func (brokenCache) Has(context.Context, string) (bool, error)             { return false, errCacheDown }
func (brokenCache) Expire(context.Context, string, time.Duration) error   { return errCacheDown }
func (brokenCache) SAdd(context.Context, string, ...string) error         { return errCacheDown }
func (brokenCache) SMembers(context.Context, string) ([]string, error)    { return nil, errCacheDown }
func (brokenCache) SRem(context.Context, string, ...string) error         { return errCacheDown }
func (brokenCache) Close() error                                          { return nil }

// countingCache 统计目录相关的缓存调用
type countingCache struct {
	cache.Cache
	calls atomic.Int64
}

func (c *countingCache) Has(ctx context.Context, key string) (bool, error) {
	c.calls.Add(1)
	return c.Cache.Has(ctx, key)
}

func (c *countingCache) SMembers(ctx context.Context, key string) ([]string, error) {
	c.calls.Add(1)
	return c.Cache.SMembers(ctx, key)
}

func (c *countingCache) SAdd(ctx context.Context, key string, members ...string) error {
	c.calls.Add(1)
	return c.Cache.SAdd(ctx, key, members...)
}
