package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "order-service"
//	  version: "v1.2.3"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 Discard()，所有记录都是空操作
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName 写入 OpenTelemetry Resource 的 service.name
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Version 写入 OpenTelemetry Resource 的 service.version
	Version string `mapstructure:"version" yaml:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务
	Port int `mapstructure:"port" yaml:"port"`

	// Path Prometheus 采集路径，默认 /metrics
	Path string `mapstructure:"path" yaml:"path"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "splitdb"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
