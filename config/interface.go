// Package config 提供统一的配置管理能力，基于 Viper 实现。
//
// 加载优先级：环境变量 > .env > 环境特定配置（config.<env>.yaml）> 基础配置。
//
//	loader, err := config.Load(ctx, &config.Config{
//		Name:      "config",
//		Paths:     []string{"./examples/splittable"},
//		EnvPrefix: "SPLITDB",
//	})
//
//	var cfg splittable.Config
//	_ = loader.UnmarshalKey("splittable", &cfg)
//
// 环境变量使用 "_" 替换 "."，例如 SPLITDB_SPLITTABLE_LOCK_TIMEOUT=10s。
package config

import (
	"context"
	"time"
)

// Loader 配置加载器
type Loader interface {
	// Load 从所有来源加载配置
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听指定 Key 的变化，ctx 取消后关闭通道
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置的有效性
	Validate() error
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
