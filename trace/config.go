package trace

import "github.com/ceyewan/splitdb/xerrors"

// Config 链路追踪配置
type Config struct {
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"` // OTLP gRPC 地址 (默认: "localhost:4317")
	Sampler     float64 `json:"sampler" yaml:"sampler" mapstructure:"sampler"`    // 采样率 [0, 1] (默认: 1)
	Batcher     string  `json:"batcher" yaml:"batcher" mapstructure:"batcher"`    // batch | simple (默认: batch)
	Insecure    bool    `json:"insecure" yaml:"insecure" mapstructure:"insecure"`
}

// DefaultConfig 返回默认配置
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) validate() error {
	if c == nil {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "config is required")
	}
	if c.ServiceName == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "service_name is required")
	}
	if c.Endpoint == "" {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "endpoint is required")
	}
	if c.Sampler < 0 || c.Sampler > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "sampler must be between 0 and 1, got %v", c.Sampler)
	}
	if c.Batcher != "" && c.Batcher != "batch" && c.Batcher != "simple" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "batcher must be \"batch\" or \"simple\", got %q", c.Batcher)
	}
	return nil
}
