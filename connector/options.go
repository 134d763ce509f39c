package connector

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	tracer trace.TracerProvider
}

// Option 配置连接器的选项
type Option func(*options)

// WithLogger 设置日志记录器，自动追加 "connector" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithTracer 为支持的客户端开启 OpenTelemetry 链路追踪（目前为 Redis）
func WithTracer(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.applyDefaults()
	return o
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}

// connectCounter 记录 Connect 结果：connector_connect_total{connector,name,result}
func (o *options) connectCounter() metrics.Counter {
	c, err := o.meter.Counter("connector_connect_total", "连接建立次数")
	if err != nil {
		o.logger.Warn("create connect counter failed", clog.Error(err))
		c, _ = metrics.Discard().Counter("connector_connect_total", "")
	}
	return c
}

func resultLabel(err error) metrics.Label {
	if err != nil {
		return metrics.L("result", "error")
	}
	return metrics.L("result", "ok")
}
