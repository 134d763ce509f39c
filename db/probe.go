package db

import (
	"context"
	"sort"
	"sync"

	"github.com/ceyewan/splitdb/xerrors"
)

// Probe 按服务器标识路由到对应的 DB，提供表结构探查与建表能力
//
// splittable.Resolver 通过它读取真实库中的表，并创建缺失的分表。
type Probe struct {
	mu      sync.RWMutex
	servers map[string]DB
}

// NewProbe 创建 Probe，servers 的 key 为服务器标识
func NewProbe(servers map[string]DB) *Probe {
	p := &Probe{servers: make(map[string]DB, len(servers))}
	for name, d := range servers {
		p.servers[name] = d
	}
	return p
}

// Register 注册或替换一个服务器
func (p *Probe) Register(server string, d DB) {
	p.mu.Lock()
	p.servers[server] = d
	p.mu.Unlock()
}

// Servers 返回已注册的服务器标识，按字典序
func (p *Probe) Servers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.servers))
	for name := range p.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Probe) lookup(server string) (DB, error) {
	p.mu.RLock()
	d, ok := p.servers[server]
	p.mu.RUnlock()
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownServer, "server %q", server)
	}
	return d, nil
}

// ListTables 返回指定服务器上的全部表名
func (p *Probe) ListTables(ctx context.Context, server string) ([]string, error) {
	d, err := p.lookup(server)
	if err != nil {
		return nil, err
	}
	return d.ListTables(ctx)
}

// CreateTables 在指定服务器上按 model 创建表
func (p *Probe) CreateTables(ctx context.Context, server string, model any, tables []string) error {
	d, err := p.lookup(server)
	if err != nil {
		return err
	}
	return d.CreateTables(ctx, model, tables...)
}
