package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用开发环境默认配置
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("splitdb")
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}

// Default 返回 info 级别、console 格式输出到 stdout 的 Logger，
// 用于组件未注入 Logger 时的兜底。
func Default() Logger {
	logger, err := New(&Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		return Discard()
	}
	return logger
}
