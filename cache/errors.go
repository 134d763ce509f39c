package cache

import "github.com/ceyewan/splitdb/xerrors"

var (
	// ErrCacheMiss key 不存在
	ErrCacheMiss = xerrors.Wrap(xerrors.ErrNotFound, "cache: miss")

	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "cache: config is nil")

	// ErrUnsupportedDriver 未知驱动
	ErrUnsupportedDriver = xerrors.Wrap(xerrors.ErrInvalidInput, "cache: unsupported driver")

	// ErrRedisConnectorRequired redis 驱动缺少连接器
	ErrRedisConnectorRequired = xerrors.Wrap(xerrors.ErrInvalidInput, "cache: redis connector is required, use WithRedisConnector")

	// ErrWrongType 对已有 key 执行了不匹配类型的操作，例如对键值执行 SAdd
	ErrWrongType = xerrors.Wrap(xerrors.ErrConflict, "cache: operation against a key holding the wrong kind of value")
)
