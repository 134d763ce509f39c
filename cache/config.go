package cache

// Config 缓存组件统一配置
type Config struct {
	// Driver 缓存驱动: "redis" | "memory"（默认 "redis"）
	Driver Driver `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Prefix 全局 Key 前缀，例如 "app:v1:"
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// Serializer 键值序列化方式: "json" | "msgpack"（默认 "json"）
	Serializer string `json:"serializer" yaml:"serializer" mapstructure:"serializer"`

	// Standalone 内存驱动配置
	Standalone *StandaloneConfig `json:"standalone" yaml:"standalone" mapstructure:"standalone"`
}

// StandaloneConfig 内存驱动配置
type StandaloneConfig struct {
	// Capacity 最大条目数（默认 10000）
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = DriverRedis
	}
	if c.Serializer == "" {
		c.Serializer = "json"
	}
	if c.Standalone == nil {
		c.Standalone = &StandaloneConfig{}
	}
	if c.Standalone.Capacity <= 0 {
		c.Standalone.Capacity = 10000
	}
}
