package dlock

import "github.com/ceyewan/splitdb/xerrors"

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.Wrap(xerrors.ErrInvalidInput, "dlock: config is nil")

	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.Wrap(xerrors.ErrInvalidInput, "dlock: connector is nil")

	// ErrLockNotHeld 锁未持有
	ErrLockNotHeld = xerrors.New("dlock: lock not held")

	// ErrOwnershipLost 锁所有权丢失，通常是 TTL 到期后被他人获取
	ErrOwnershipLost = xerrors.New("dlock: ownership lost")
)
