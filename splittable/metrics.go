package splittable

import (
	"context"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

const (
	MetricResolveTotal     = "splittable_resolve_total"
	MetricResolveDuration  = "splittable_resolve_duration_seconds"
	MetricRefreshTotal     = "splittable_directory_refresh_total"
	MetricTablesCreated    = "splittable_tables_created_total"
	MetricLockWaitDuration = "splittable_lock_wait_seconds"
)

type instruments struct {
	resolves metrics.Counter
	duration metrics.Histogram
	refresh  metrics.Counter
	created  metrics.Counter
	lockWait metrics.Histogram
}

// newInstruments 创建失败的指标退化为 noop，不影响解析
func newInstruments(m metrics.Meter, logger clog.Logger) *instruments {
	noop := metrics.Discard()
	counter := func(name, desc string) metrics.Counter {
		c, err := m.Counter(name, desc)
		if err != nil {
			logger.Warn("create counter failed", clog.String("name", name), clog.Error(err))
			c, _ = noop.Counter(name, desc)
		}
		return c
	}
	histogram := func(name, desc string) metrics.Histogram {
		h, err := m.Histogram(name, desc, metrics.WithUnit("s"))
		if err != nil {
			logger.Warn("create histogram failed", clog.String("name", name), clog.Error(err))
			h, _ = noop.Histogram(name, desc)
		}
		return h
	}
	return &instruments{
		resolves: counter(MetricResolveTotal, "分表解析次数"),
		duration: histogram(MetricResolveDuration, "分表解析耗时"),
		refresh:  counter(MetricRefreshTotal, "表目录刷新次数"),
		created:  counter(MetricTablesCreated, "自动创建的分表数"),
		lockWait: histogram(MetricLockWaitDuration, "等待建表锁的耗时"),
	}
}

func (m *instruments) recordResolve(ctx context.Context, entity string, op Operation, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if code := xerrors.GetCode(err); code != "" {
			result = code
		}
	}
	m.resolves.Inc(ctx, metrics.L("entity", entity), metrics.L("op", op.String()), metrics.L("result", result))
	m.duration.Record(ctx, seconds, metrics.L("entity", entity), metrics.L("op", op.String()))
}
