package db

import "github.com/ceyewan/splitdb/xerrors"

// Config DB 组件配置
type Config struct {
	// Driver 数据库驱动: "mysql" | "postgresql" | "sqlite"（默认 "mysql"）
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// EnableSharding 是否开启哈希分片
	EnableSharding bool `json:"enable_sharding" yaml:"enable_sharding" mapstructure:"enable_sharding"`

	// ShardingRules 分片规则，允许为不同的表组配置不同的规则
	ShardingRules []ShardingRule `json:"sharding_rules" yaml:"sharding_rules" mapstructure:"sharding_rules"`
}

// ShardingRule 哈希分片规则
type ShardingRule struct {
	// ShardingKey 分片键，例如 "user_id"
	ShardingKey string `json:"sharding_key" yaml:"sharding_key" mapstructure:"sharding_key"`

	// NumberOfShards 分片数量，例如 64
	NumberOfShards uint `json:"number_of_shards" yaml:"number_of_shards" mapstructure:"number_of_shards"`

	// Tables 应用此规则的逻辑表名
	Tables []string `json:"tables" yaml:"tables" mapstructure:"tables"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case "mysql", "postgresql", "sqlite":
	default:
		return xerrors.Wrapf(ErrInvalidConfig, "unsupported driver: %s (must be 'mysql', 'postgresql' or 'sqlite')", c.Driver)
	}

	if c.EnableSharding && len(c.ShardingRules) == 0 {
		return xerrors.Wrap(ErrInvalidConfig, "sharding enabled but no rules provided")
	}
	for _, rule := range c.ShardingRules {
		if rule.ShardingKey == "" {
			return xerrors.Wrap(ErrInvalidConfig, "sharding key cannot be empty")
		}
		if rule.NumberOfShards == 0 {
			return xerrors.Wrap(ErrInvalidConfig, "number of shards must be greater than 0")
		}
		if len(rule.Tables) == 0 {
			return xerrors.Wrap(ErrInvalidConfig, "sharding tables cannot be empty")
		}
		for _, table := range rule.Tables {
			if table == "" {
				return xerrors.Wrap(ErrInvalidConfig, "sharding table name cannot be empty")
			}
		}
	}
	return nil
}
