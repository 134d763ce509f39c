package connector

import (
	"fmt"
	"time"

	"github.com/ceyewan/splitdb/xerrors"
)

// PoolConfig 关系型数据库共用的连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`       // 最大空闲连接数 (默认: 10)
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`       // 最大打开连接数 (默认: 100)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"` // 连接最大生命周期 (默认: 1h)
}

func (p *PoolConfig) setDefaults() {
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 10
	}
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 100
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = time.Hour
	}
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	Name string `mapstructure:"name" yaml:"name"` // 连接器名称 (默认: "default")

	DSN      string `mapstructure:"dsn" yaml:"dsn"`           // 完整 DSN，提供时忽略 Host/Port 等字段
	Host     string `mapstructure:"host" yaml:"host"`         // 主机地址
	Port     int    `mapstructure:"port" yaml:"port"`         // 端口 (默认: 3306)
	Username string `mapstructure:"username" yaml:"username"` // 用户名
	Password string `mapstructure:"password" yaml:"password"` // 密码
	Database string `mapstructure:"database" yaml:"database"` // 数据库名
	Charset  string `mapstructure:"charset" yaml:"charset"`   // 字符集 (默认: "utf8mb4")

	PoolConfig `mapstructure:",squash" yaml:",inline"`
}

func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	c.PoolConfig.setDefaults()
}

func (c *MySQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "mysql host is required")
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "mysql username is required")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "mysql database is required")
	}
	return nil
}

func (c *MySQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// PostgreSQLConfig PostgreSQL 连接配置
type PostgreSQLConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"` // 默认: 5432
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Database string `mapstructure:"database" yaml:"database"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"` // 默认: "disable"
	Timezone string `mapstructure:"timezone" yaml:"timezone"` // 默认: "UTC"

	PoolConfig `mapstructure:",squash" yaml:",inline"`
}

func (c *PostgreSQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.PoolConfig.setDefaults()
}

func (c *PostgreSQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return xerrors.Wrap(ErrConfig, "postgresql host is required")
	}
	if c.Username == "" {
		return xerrors.Wrap(ErrConfig, "postgresql username is required")
	}
	if c.Database == "" {
		return xerrors.Wrap(ErrConfig, "postgresql database is required")
	}
	return nil
}

func (c *PostgreSQLConfig) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode, c.Timezone)
}

// SQLiteConfig SQLite 连接配置
//
// Path 可以是文件路径，也可以是 "file:<name>?mode=memory&cache=shared" 形式的共享内存库。
type SQLiteConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	Path string `mapstructure:"path" yaml:"path"` // 默认: "file::memory:?cache=shared"

	PoolConfig `mapstructure:",squash" yaml:",inline"`
}

func (c *SQLiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Path == "" {
		c.Path = "file::memory:?cache=shared"
	}
	// SQLite 单写者，默认单连接，避免共享缓存下的表锁冲突
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 1
	}
	c.PoolConfig.setDefaults()
}

func (c *SQLiteConfig) validate() error {
	c.setDefaults()
	return nil
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	Addr     string `mapstructure:"addr" yaml:"addr"`         // 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password" yaml:"password"` // 认证密码
	DB       int    `mapstructure:"db" yaml:"db"`             // 数据库编号

	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`           // 连接池大小 (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"` // 最小空闲连接数
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`     // 默认: 5s
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`     // 默认: 3s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`   // 默认: 3s
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return xerrors.Wrap(ErrConfig, "redis addr is required")
	}
	if c.DB < 0 {
		return xerrors.Wrap(ErrConfig, "redis db must not be negative")
	}
	return nil
}

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name string `mapstructure:"name" yaml:"name"`

	Endpoints []string `mapstructure:"endpoints" yaml:"endpoints"`
	Username  string   `mapstructure:"username" yaml:"username"`
	Password  string   `mapstructure:"password" yaml:"password"`

	DialTimeout      time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`             // 默认: 5s
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time" yaml:"keep_alive_time"`       // 默认: 10s
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout" yaml:"keep_alive_timeout"` // 默认: 3s
}

func (c *EtcdConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

func (c *EtcdConfig) validate() error {
	c.setDefaults()
	if len(c.Endpoints) == 0 {
		return xerrors.Wrap(ErrConfig, "etcd endpoints are required")
	}
	return nil
}
