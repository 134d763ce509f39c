package splittable

import (
	"fmt"

	"github.com/ceyewan/splitdb/xerrors"
)

// 错误码
const (
	CodeConfiguration    = "SPLIT_CONFIG"
	CodeNoTargetShard    = "SPLIT_NO_TARGET"
	CodeCreationFailed   = "SPLIT_CREATE_FAILED"
	CodeLockTimeout      = "SPLIT_LOCK_TIMEOUT"
	CodeCacheUnavailable = "SPLIT_CACHE_UNAVAILABLE"
	CodeInvalidValue     = "SPLIT_INVALID_VALUE"
	CodeUnknownEntity    = "SPLIT_UNKNOWN_ENTITY"
)

var (
	// ErrConfiguration 分表实体缺少可用的分表策略等配置错误，不可重试
	ErrConfiguration = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrInvalidInput, "splittable: configuration error"), CodeConfiguration)

	// ErrNoTargetShard 插入时没有计算出任何目标分表
	ErrNoTargetShard = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrInvalidInput, "splittable: no target shard for insert"), CodeNoTargetShard)

	// ErrShardCreationFailed 建表失败，锁已释放
	ErrShardCreationFailed = xerrors.NewCoded(CodeCreationFailed, "splittable: shard creation failed")

	// ErrLockTimeout 在等待时间内未拿到建表锁，调用方可重试整个解析过程
	ErrLockTimeout = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrTimeout, "splittable: create lock timeout"), CodeLockTimeout)

	// ErrCacheUnavailable 表目录缓存不可用
	ErrCacheUnavailable = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrUnavailable, "splittable: directory cache unavailable"), CodeCacheUnavailable)

	// ErrInvalidSplitValue 分表键的值无法转换为策略需要的类型，或范围过大
	ErrInvalidSplitValue = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrInvalidInput, "splittable: invalid split value"), CodeInvalidValue)

	// ErrRangeTooWide 区间展开的周期数超出上限，总是和 ErrInvalidSplitValue 一起返回
	//
	// 读操作遇到它时不再需要候选表，直接按区间筛选已知分表；插入仍然失败。
	ErrRangeTooWide = xerrors.New("splittable: range too wide")

	// ErrUnknownEntity 实体未配置
	ErrUnknownEntity = xerrors.WithCode(
		xerrors.Wrap(xerrors.ErrNotFound, "splittable: unknown entity"), CodeUnknownEntity)
)

// IsRetryable 报告错误是否可以由调用方重试整个解析过程
func IsRetryable(err error) bool {
	return xerrors.Is(err, ErrLockTimeout)
}

// withCause 同时保留哨兵错误和底层原因，两者都能被 Is 识别
func withCause(sentinel, cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", sentinel, fmt.Sprintf(format, args...), cause)
}
