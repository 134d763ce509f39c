// Package splittable 为分表实体解析每次数据操作实际访问的物理表。
//
// Resolver 由分表策略计算候选表，通过缓存中的表目录判断哪些表已经存在，
// 目录缺失或过期时从数据库重新探测；插入时在实体级别的建表锁内创建缺失的分表，
// 保证并发插入同一个新周期时只建一次表。
//
// 基本用法：
//
//	resolver, err := splittable.New(&splittable.Config{
//		AutoCreate: true,
//		Entities: []splittable.EntityConfig{
//			{Name: "Order", RootTable: "t_order", Granularity: "month"},
//		},
//	},
//		splittable.WithProbe(db.NewProbe(map[string]db.DB{"main": database})),
//		splittable.WithModel("Order", &Order{}),
//		splittable.WithLogger(logger),
//	)
//
//	tables, err := resolver.Resolve(ctx, splittable.Request{
//		Op:       splittable.OpInsert,
//		Entity:   "Order",
//		Server:   "main",
//		Behavior: splittable.Exactly(order.CreatedAt),
//	})
package splittable

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm/schema"

	"github.com/ceyewan/splitdb/cache"
	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/dlock"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

const (
	// refreshTimeout 单次目录探测的上限，探测不随调用方取消
	refreshTimeout = 30 * time.Second

	unknownEntityLabel = "unknown"
)

type entity struct {
	spec   EntitySpec
	policy Policy
}

// Resolver 分表解析器，可被多个 goroutine 并发使用
type Resolver struct {
	autoCreate  bool
	entities    map[string]*entity
	directory   *Directory
	coordinator *Coordinator
	probe       SchemaProbe
	logger      clog.Logger
	inst        *instruments
	tracer      trace.Tracer
	group       singleflight.Group

	// 由 New 创建的依赖，Close 时释放
	ownedCache  cache.Cache
	ownedLocker dlock.Locker
}

// New 创建分表解析器
//
// 所有配置问题（未知粒度、找不到分表策略、缺少建表模型等）都在这里以 ErrConfiguration 返回，
// Resolve 不会再遇到配置错误。
func New(cfg *Config, opts ...Option) (*Resolver, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfiguration, "config is nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.applyDefaults()

	r := &Resolver{
		autoCreate: c.AutoCreate,
		entities:   make(map[string]*entity, len(c.Entities)),
		probe:      o.probe,
		logger:     o.logger,
		inst:       newInstruments(o.meter, o.logger),
		tracer:     o.tracer.Tracer("github.com/ceyewan/splitdb/splittable"),
	}

	sharded := false
	for _, ec := range c.Entities {
		ent, err := buildEntity(&c, ec, &o)
		if err != nil {
			return nil, err
		}
		r.entities[ent.spec.Name] = ent
		sharded = sharded || ent.spec.Sharded()
	}
	for name := range o.models {
		if _, ok := r.entities[name]; !ok {
			return nil, xerrors.Wrapf(ErrConfiguration, "model registered for unknown entity %s", name)
		}
	}
	if sharded && r.probe == nil {
		return nil, xerrors.Wrap(ErrConfiguration, "sharded entities require WithProbe")
	}

	store := o.cache
	if store == nil {
		var err error
		store, err = cache.NewStandalone(&cache.StandaloneConfig{}, cache.WithLogger(o.logger), cache.WithMeter(o.meter))
		if err != nil {
			return nil, xerrors.Wrap(err, "create standalone directory cache")
		}
		r.ownedCache = store
	}
	r.directory = NewDirectory(store, c.CacheNamespace)

	locker := o.locker
	if locker == nil {
		locker = dlock.NewLocal(dlock.WithLogger(o.logger), dlock.WithMeter(o.meter))
		r.ownedLocker = locker
	}
	r.coordinator = NewCoordinator(locker, c.LockTimeout)
	r.coordinator.logger = o.logger
	r.coordinator.lockWait = r.inst.lockWait

	r.logger.Info("split table resolver created",
		clog.Int("entities", len(r.entities)),
		clog.Bool("auto_create", c.AutoCreate),
		clog.Bool("external_cache", o.cache != nil),
		clog.Bool("external_locker", o.locker != nil))
	return r, nil
}

func buildEntity(cfg *Config, ec EntityConfig, o *options) (*entity, error) {
	g, err := ParseGranularity(ec.Granularity)
	if err != nil {
		return nil, xerrors.Wrapf(err, "entity %s", ec.Name)
	}
	model := o.models[ec.Name]
	root := ec.RootTable
	if root == "" {
		root, err = defaultRootTable(ec.Name, model)
		if err != nil {
			return nil, err
		}
	}

	spec := EntitySpec{
		Name:        ec.Name,
		RootTable:   root,
		Granularity: g,
		Provider:    ec.Provider,
		Model:       model,
	}
	ent := &entity{spec: spec}
	if !spec.Sharded() {
		return ent, nil
	}

	switch {
	case o.policies[ec.Provider] != nil:
		ent.policy = o.policies[ec.Provider]
	case ec.Provider == ModPolicyName:
		if ent.policy, err = NewModPolicy(ec.Shards); err != nil {
			return nil, xerrors.Wrapf(err, "entity %s", ec.Name)
		}
	case ec.Provider == "" && g.IsDate():
		ent.policy = &DatePolicy{Now: o.clock, Location: o.location, MaxPeriods: cfg.MaxPeriods}
	case ec.Provider == "":
		return nil, xerrors.Wrapf(ErrConfiguration, "entity %s: granularity %s requires a provider", ec.Name, g)
	default:
		return nil, xerrors.Wrapf(ErrConfiguration, "entity %s: policy %q is not registered", ec.Name, ec.Provider)
	}

	if cfg.AutoCreate && model == nil {
		return nil, xerrors.Wrapf(ErrConfiguration, "entity %s: auto create requires WithModel", ec.Name)
	}
	return ent, nil
}

// defaultRootTable 未配置根表名时，优先使用模型的表名，否则按 gorm 命名策略推导
func defaultRootTable(name string, model any) (string, error) {
	if model == nil {
		return schema.NamingStrategy{}.TableName(name), nil
	}
	s, err := schema.Parse(model, &sync.Map{}, schema.NamingStrategy{})
	if err != nil {
		return "", withCause(ErrConfiguration, err, "entity %s: parse model", name)
	}
	return s.Table, nil
}

// Entity 返回实体的分表定义
func (r *Resolver) Entity(name string) (EntitySpec, bool) {
	ent, ok := r.entities[name]
	if !ok {
		return EntitySpec{}, false
	}
	return ent.spec, true
}

// Resolve 返回请求实际访问的物理表
//
// 插入返回策略计算出的全部目标表，必要时先建表；
// 读操作只返回已经存在的表，不存在的候选表直接忽略。
func (r *Resolver) Resolve(ctx context.Context, req Request) (tables []string, err error) {
	start := time.Now()
	ent, ok := r.entities[req.Entity]
	defer func() {
		label := unknownEntityLabel
		if ok {
			label = req.Entity
		}
		r.inst.recordResolve(ctx, label, req.Op, time.Since(start).Seconds(), err)
	}()

	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownEntity, "%s", req.Entity)
	}
	if !ent.spec.Sharded() {
		return []string{ent.spec.RootTable}, nil
	}
	if req.Op == OpInsert {
		return r.resolveInsert(ctx, ent, req)
	}
	return r.resolveRead(ctx, ent, req)
}

func (r *Resolver) resolveInsert(ctx context.Context, ent *entity, req Request) ([]string, error) {
	spec := ent.spec
	candidates, err := ent.policy.CandidateTables(spec.RootTable, spec, req.Behavior)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, xerrors.Wrapf(ErrNoTargetShard, "entity %s", spec.Name)
	}

	known, fresh, err := r.load(ctx, ent, req.Server)
	if err != nil {
		return nil, err
	}
	diff := difference(candidates, known)
	if len(diff) > 0 && !fresh {
		if known, err = r.refresh(ctx, ent, req.Server); err != nil {
			return nil, err
		}
		diff = difference(candidates, known)
	}
	if len(diff) == 0 {
		r.logger.DebugContext(ctx, "insert shards known",
			clog.String("entity", spec.Name), clog.Strings("tables", candidates))
		return candidates, nil
	}

	if !r.autoCreate {
		r.logger.WarnContext(ctx, "insert shards missing and auto create disabled",
			clog.String("entity", spec.Name), clog.Strings("missing", diff))
		return candidates, nil
	}

	err = r.coordinator.WithCreateLock(ctx, spec.Name, func(ctx context.Context) error {
		return r.createMissing(ctx, ent, req.Server, candidates)
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// createMissing 在建表锁内执行：重新读取目录，只创建仍然缺失的表
func (r *Resolver) createMissing(ctx context.Context, ent *entity, server string, candidates []string) error {
	spec := ent.spec
	key := r.directory.Key(spec.Name, server)

	ctx, span := r.tracer.Start(ctx, "splittable.create", trace.WithAttributes(
		attribute.String("splittable.entity", spec.Name),
		attribute.String("splittable.server", server),
	))
	defer span.End()

	known, err := r.directory.Members(ctx, key)
	if err != nil {
		return err
	}
	diff := difference(candidates, known)
	if len(diff) == 0 {
		r.logger.DebugContext(ctx, "shards created by another caller",
			clog.String("entity", spec.Name), clog.Strings("tables", candidates))
		return nil
	}

	span.SetAttributes(attribute.StringSlice("splittable.tables", diff))
	if err := r.probe.CreateTables(ctx, server, spec.Model, diff); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create shard tables failed")
		r.logger.ErrorContext(ctx, "create shard tables failed",
			clog.String("entity", spec.Name), clog.String("server", server),
			clog.Strings("tables", diff), clog.Error(err))
		return withCause(ErrShardCreationFailed, err, "entity %s tables %v", spec.Name, diff)
	}
	r.inst.created.Add(ctx, float64(len(diff)), metrics.L("entity", spec.Name))
	r.logger.InfoContext(ctx, "shard tables created",
		clog.String("entity", spec.Name), clog.String("server", server), clog.Strings("tables", diff))

	// 之前发起的刷新可能早于建表，不能复用它的结果
	r.group.Forget(key)
	_, err = r.refresh(ctx, ent, server)
	return err
}

func (r *Resolver) resolveRead(ctx context.Context, ent *entity, req Request) ([]string, error) {
	spec := ent.spec
	if req.Behavior.Mode == AllShards {
		known, _, err := r.load(ctx, ent, req.Server)
		if err != nil {
			return nil, err
		}
		return sortedUnique(append([]string(nil), known...)), nil
	}

	candidates, err := ent.policy.CandidateTables(spec.RootTable, spec, req.Behavior)
	if err != nil {
		if req.Behavior.Mode != Range || !xerrors.Is(err, ErrRangeTooWide) {
			return nil, err
		}
		// 区间过宽时候选表只是提示，直接按区间筛选已知分表
		r.logger.DebugContext(ctx, "range too wide, selecting from known shards",
			clog.String("entity", spec.Name), clog.Error(err))
		candidates = nil
	}
	known, fresh, err := r.load(ctx, ent, req.Server)
	if err != nil {
		return nil, err
	}
	diff := difference(candidates, known)
	if len(diff) > 0 && !fresh {
		if known, err = r.refresh(ctx, ent, req.Server); err != nil {
			return nil, err
		}
		diff = difference(candidates, known)
	}
	if len(diff) > 0 {
		r.logger.DebugContext(ctx, "dropping missing shards",
			clog.String("entity", spec.Name), clog.Strings("missing", diff))
		existing := newTableSet(known)
		kept := candidates[:0:0]
		for _, c := range candidates {
			if existing.has(c) {
				kept = append(kept, c)
			}
		}
		candidates = kept
	}
	return ent.policy.FinalSelection(spec.RootTable, spec, req.Behavior, known, candidates), nil
}

// load 读取目录，目录从未填充时从数据库探测，fresh 表示结果来自刚完成的探测
func (r *Resolver) load(ctx context.Context, ent *entity, server string) (known []string, fresh bool, err error) {
	key := r.directory.Key(ent.spec.Name, server)
	ok, err := r.directory.Exists(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		known, err = r.refresh(ctx, ent, server)
		return known, true, err
	}
	known, err = r.directory.Members(ctx, key)
	return known, false, err
}

// Refresh 从数据库探测实体在 server 上的分表并写入目录，返回探测到的表
func (r *Resolver) Refresh(ctx context.Context, entityName, server string) ([]string, error) {
	ent, ok := r.entities[entityName]
	if !ok {
		return nil, xerrors.Wrapf(ErrUnknownEntity, "%s", entityName)
	}
	if !ent.spec.Sharded() {
		return nil, xerrors.Wrapf(ErrConfiguration, "entity %s is not sharded", entityName)
	}
	return r.refresh(ctx, ent, server)
}

// refresh 同一目录 Key 的并发刷新合并为一次探测
//
// 探测在脱离调用方取消信号的 context 上执行，由 refreshTimeout 兜底；
// 每个调用方只因自己的 ctx 结束而提前返回，不会拿到其他调用方的取消错误。
func (r *Resolver) refresh(ctx context.Context, ent *entity, server string) ([]string, error) {
	spec := ent.spec
	key := r.directory.Key(spec.Name, server)
	ch := r.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		ctx, span := r.tracer.Start(ctx, "splittable.refresh", trace.WithAttributes(
			attribute.String("splittable.entity", spec.Name),
			attribute.String("splittable.server", server),
		))
		defer span.End()

		tables, err := r.probe.ListTables(ctx, server)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list tables failed")
			return nil, xerrors.Wrapf(err, "list tables on server %q", server)
		}
		matched := filterPrefix(tables, spec.RootTable)
		if err := r.directory.Replace(ctx, key, matched); err != nil {
			return nil, err
		}
		r.inst.refresh.Inc(ctx, metrics.L("entity", spec.Name))
		r.logger.InfoContext(ctx, "directory refreshed",
			clog.String("entity", spec.Name), clog.String("server", server), clog.Int("tables", len(matched)))
		return matched, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]string(nil), res.Val.([]string)...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 释放 New 内部创建的缓存和锁，注入的依赖由调用方关闭
func (r *Resolver) Close() error {
	var errs []error
	if r.ownedCache != nil {
		errs = append(errs, r.ownedCache.Close())
	}
	if r.ownedLocker != nil {
		errs = append(errs, r.ownedLocker.Close())
	}
	return xerrors.Combine(errs...)
}
