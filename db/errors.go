package db

import "github.com/ceyewan/splitdb/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.Wrap(xerrors.ErrInvalidInput, "db: invalid config")

	// ErrConnectorRequired 与 Driver 对应的连接器未提供
	ErrConnectorRequired = xerrors.Wrap(xerrors.ErrInvalidInput, "db: connector is required")

	// ErrUnknownServer Probe 中没有注册该服务器
	ErrUnknownServer = xerrors.Wrap(xerrors.ErrNotFound, "db: unknown server")

	// ErrModelRequired 建表时缺少模型
	ErrModelRequired = xerrors.Wrap(xerrors.ErrInvalidInput, "db: model is required to create tables")
)
