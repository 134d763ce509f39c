package splittable

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ceyewan/splitdb/cache"
	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/dlock"
	"github.com/ceyewan/splitdb/metrics"
)

// Option 分表组件选项函数
type Option func(*options)

type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	tracer   trace.TracerProvider
	cache    cache.Cache
	locker   dlock.Locker
	probe    SchemaProbe
	policies map[string]Policy
	models   map[string]any
	clock    func() time.Time
	location *time.Location
}

// WithLogger 注入日志记录器，自动追加 "splittable" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("splittable")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithTracer 注入 TracerProvider，目录刷新和建表会生成 Span
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

// WithCache 注入表目录使用的缓存，未注入时使用进程内缓存
//
// 缓存由调用方负责关闭。
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithLocker 注入建表锁，未注入时使用进程内锁
func WithLocker(l dlock.Locker) Option {
	return func(o *options) {
		o.locker = l
	}
}

// WithProbe 注入数据库表结构探测能力，存在分表实体时必须提供
func WithProbe(p SchemaProbe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// WithPolicy 注册自定义分表策略，实体通过 provider 名称引用
func WithPolicy(name string, p Policy) Option {
	return func(o *options) {
		if o.policies == nil {
			o.policies = make(map[string]Policy)
		}
		o.policies[name] = p
	}
}

// WithModel 指定实体建表使用的 gorm 模型
func WithModel(entity string, model any) Option {
	return func(o *options) {
		if o.models == nil {
			o.models = make(map[string]any)
		}
		o.models[entity] = model
	}
}

// WithClock 指定当前时间来源，用于计算当前周期
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithLocation 指定解析日期使用的时区 (默认: time.Local)
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		o.location = loc
	}
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Default().WithNamespace("splittable")
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider()
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.location == nil {
		o.location = time.Local
	}
}
