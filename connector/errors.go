package connector

import "github.com/ceyewan/splitdb/xerrors"

// 连接器专用的哨兵错误
var (
	ErrNotConnected = xerrors.New("connector: not connected")
	ErrClientNil    = xerrors.New("connector: client is nil")
	ErrConnection   = xerrors.Wrap(xerrors.ErrUnavailable, "connector: connection failed")
	ErrConfig       = xerrors.Wrap(xerrors.ErrInvalidInput, "connector: invalid config")
	ErrHealthCheck  = xerrors.New("connector: health check failed")
)
