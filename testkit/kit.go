// Package testkit 提供测试用的通用依赖：日志、指标、唯一 ID，
// 以及基于 SQLite 内存库和 testcontainers 的连接器。
package testkit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	ctx, cancel := NewContext(t, time.Minute)
	t.Cleanup(cancel)
	return &Kit{
		Ctx:    ctx,
		Logger: NewLogger(),
		Meter:  NewMeter(t),
	}
}

// NewLogger 返回开发环境格式的 logger，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("splitdb"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回启用状态但不监听端口的 meter，测试结束时关闭
func NewMeter(t *testing.T) metrics.Meter {
	meter, err := metrics.New(&metrics.Config{Enabled: true, ServiceName: "splitdb-test"})
	if err != nil {
		return metrics.Discard()
	}
	t.Cleanup(func() {
		_ = meter.Shutdown(context.Background())
	})
	return meter
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回 UUID v4 前 8 位，用于生成唯一的 Key、库名或表名后缀
func NewID() string {
	return uuid.New().String()[0:8]
}

// SkipIfShort 在 -short 模式或容器环境不可用时跳过依赖容器的测试
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// Scrape 通过 meter 的 Handler 拉取一次 Prometheus 文本输出
func Scrape(t *testing.T, m metrics.Meter) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
