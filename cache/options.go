package cache

import (
	"context"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

// Option 缓存组件选项函数
type Option func(*options)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	redisConn connector.RedisConnector
}

// WithLogger 注入日志记录器，自动追加 "cache" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("cache")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// WithRedisConnector 注入 Redis 连接器（仅 redis 驱动）
func WithRedisConnector(conn connector.RedisConnector) Option {
	return func(o *options) {
		o.redisConn = conn
	}
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Default().WithNamespace("cache")
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}

// opsRecorder 记录 cache_operations_total{driver,op,result}
type opsRecorder struct {
	driver  string
	counter metrics.Counter
}

func newOpsRecorder(driver Driver, o *options) opsRecorder {
	c, err := o.meter.Counter("cache_operations_total", "缓存操作次数")
	if err != nil {
		o.logger.Warn("create cache counter failed", clog.Error(err))
		c, _ = metrics.Discard().Counter("cache_operations_total", "")
	}
	return opsRecorder{driver: string(driver), counter: c}
}

func (r opsRecorder) record(ctx context.Context, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case xerrors.Is(err, ErrCacheMiss):
		result = "miss"
	default:
		result = "error"
	}
	r.counter.Inc(ctx, metrics.L("driver", r.driver), metrics.L("op", op), metrics.L("result", result))
}
