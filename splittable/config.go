package splittable

import (
	"strings"
	"time"

	"github.com/ceyewan/splitdb/xerrors"
)

// Config 分表解析组件配置
type Config struct {
	// AutoCreate 插入时自动创建缺失的分表
	AutoCreate bool `json:"auto_create" yaml:"auto_create" mapstructure:"auto_create"`

	// LockTimeout 等待建表锁的最长时间 (默认: 10s)
	LockTimeout time.Duration `json:"lock_timeout" yaml:"lock_timeout" mapstructure:"lock_timeout"`

	// CacheNamespace 表目录在缓存中的 Key 前缀 (默认: "splittable:directory:")
	CacheNamespace string `json:"cache_namespace" yaml:"cache_namespace" mapstructure:"cache_namespace"`

	// MaxPeriods 日期区间最多展开的周期数 (默认: 366)
	MaxPeriods int `json:"max_periods" yaml:"max_periods" mapstructure:"max_periods"`

	Entities []EntityConfig `json:"entities" yaml:"entities" mapstructure:"entities"`
}

// EntityConfig 单个实体的分表配置
type EntityConfig struct {
	Name string `json:"name" yaml:"name" mapstructure:"name"`
	// RootTable 为空时由模型或 gorm 命名策略推导
	RootTable   string `json:"root_table" yaml:"root_table" mapstructure:"root_table"`
	Granularity string `json:"granularity" yaml:"granularity" mapstructure:"granularity"`
	Provider    string `json:"provider" yaml:"provider" mapstructure:"provider"`
	// Shards 仅 provider 为 mod 时有效
	Shards int `json:"shards" yaml:"shards" mapstructure:"shards"`
}

func (c *Config) setDefaults() {
	if c.LockTimeout <= 0 {
		c.LockTimeout = 10 * time.Second
	}
	if c.CacheNamespace == "" {
		c.CacheNamespace = "splittable:directory:"
	}
	if c.MaxPeriods <= 0 {
		c.MaxPeriods = 366
	}
}

func (c *Config) validate() error {
	if c == nil {
		return xerrors.Wrap(ErrConfiguration, "config is nil")
	}
	seen := make(map[string]struct{}, len(c.Entities))
	for i, e := range c.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return xerrors.Wrapf(ErrConfiguration, "entities[%d]: name is required", i)
		}
		if _, ok := seen[name]; ok {
			return xerrors.Wrapf(ErrConfiguration, "entity %s: duplicated", name)
		}
		seen[name] = struct{}{}
		if _, err := ParseGranularity(e.Granularity); err != nil {
			return xerrors.Wrapf(err, "entity %s", name)
		}
		if e.Shards < 0 {
			return xerrors.Wrapf(ErrConfiguration, "entity %s: shards must not be negative", name)
		}
	}
	return nil
}
