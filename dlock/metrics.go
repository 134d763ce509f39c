package dlock

import (
	"context"
	"time"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
)

const (
	// MetricLockAcquired 锁获取成功次数 (Counter)
	MetricLockAcquired = "dlock_lock_acquired_total"

	// MetricLockFailed 锁获取失败次数，含 TryLock 未抢到 (Counter)
	MetricLockFailed = "dlock_lock_failed_total"

	// MetricLockReleased 锁释放次数 (Counter)
	MetricLockReleased = "dlock_lock_released_total"

	// MetricLockHoldDuration 锁持有时长 (Histogram)
	MetricLockHoldDuration = "dlock_lock_hold_duration_seconds"

	// LabelBackend 后端类型标签
	LabelBackend = "backend"

	// LabelOperation 操作类型标签
	LabelOperation = "operation"
)

type lockMetrics struct {
	backend  string
	acquired metrics.Counter
	failed   metrics.Counter
	released metrics.Counter
	hold     metrics.Histogram
}

func newLockMetrics(driver DriverType, o *options) *lockMetrics {
	m := &lockMetrics{backend: string(driver)}
	var err error
	if m.acquired, err = o.meter.Counter(MetricLockAcquired, "锁获取成功次数"); err != nil {
		o.logger.Warn("create metric failed", clog.String("name", MetricLockAcquired), clog.Error(err))
		m.acquired, _ = metrics.Discard().Counter(MetricLockAcquired, "")
	}
	if m.failed, err = o.meter.Counter(MetricLockFailed, "锁获取失败次数"); err != nil {
		o.logger.Warn("create metric failed", clog.String("name", MetricLockFailed), clog.Error(err))
		m.failed, _ = metrics.Discard().Counter(MetricLockFailed, "")
	}
	if m.released, err = o.meter.Counter(MetricLockReleased, "锁释放次数"); err != nil {
		o.logger.Warn("create metric failed", clog.String("name", MetricLockReleased), clog.Error(err))
		m.released, _ = metrics.Discard().Counter(MetricLockReleased, "")
	}
	if m.hold, err = o.meter.Histogram(MetricLockHoldDuration, "锁持有时长", metrics.WithUnit("s")); err != nil {
		o.logger.Warn("create metric failed", clog.String("name", MetricLockHoldDuration), clog.Error(err))
		m.hold, _ = metrics.Discard().Histogram(MetricLockHoldDuration, "")
	}
	return m
}

func (m *lockMetrics) onAcquired(ctx context.Context, op string) {
	m.acquired.Inc(ctx, metrics.L(LabelBackend, m.backend), metrics.L(LabelOperation, op))
}

func (m *lockMetrics) onFailed(ctx context.Context, op string) {
	m.failed.Inc(ctx, metrics.L(LabelBackend, m.backend), metrics.L(LabelOperation, op))
}

func (m *lockMetrics) onReleased(ctx context.Context, since time.Time) {
	m.released.Inc(ctx, metrics.L(LabelBackend, m.backend))
	m.hold.Record(ctx, time.Since(since).Seconds(), metrics.L(LabelBackend, m.backend))
}
