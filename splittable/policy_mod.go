package splittable

import (
	"fmt"
	"hash/crc32"
	"strconv"

	"github.com/spf13/cast"

	"github.com/ceyewan/splitdb/xerrors"
)

// ModPolicyName 内置取模策略的名称，实体配置 provider: mod 时使用
const ModPolicyName = "mod"

// ModPolicy 按分表键取模的策略，后缀与 gorm.io/sharding 一致
//
// 整数直接取模；字符串能转为整数时按整数处理，否则取 CRC32。
// Range 选择返回全部分表。
type ModPolicy struct {
	Shards int
}

// NewModPolicy 创建取模策略
func NewModPolicy(shards int) (*ModPolicy, error) {
	if shards <= 0 || shards >= 10000 {
		return nil, xerrors.Wrapf(ErrConfiguration, "mod policy shards must be in [1, 9999], got %d", shards)
	}
	return &ModPolicy{Shards: shards}, nil
}

func (p *ModPolicy) suffixFormat() string {
	switch {
	case p.Shards < 10:
		return "_%01d"
	case p.Shards < 100:
		return "_%02d"
	case p.Shards < 1000:
		return "_%03d"
	default:
		return "_%04d"
	}
}

func (p *ModPolicy) shardOf(v any) (int64, error) {
	var id int64
	switch val := v.(type) {
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			id = n
		} else {
			id = int64(crc32.ChecksumIEEE([]byte(val)))
		}
	case []byte:
		id = int64(crc32.ChecksumIEEE(val))
	default:
		n, err := cast.ToInt64E(v)
		if err != nil {
			return 0, withCause(ErrInvalidSplitValue, err, "convert %v to shard key", v)
		}
		id = n
	}
	if id < 0 {
		return 0, xerrors.Wrapf(ErrInvalidSplitValue, "negative shard key %d", id)
	}
	return id % int64(p.Shards), nil
}

func (p *ModPolicy) CandidateTables(root string, _ EntitySpec, b Behavior) ([]string, error) {
	format := p.suffixFormat()
	switch b.Mode {
	case Range:
		tables := make([]string, p.Shards)
		for i := range tables {
			tables[i] = root + fmt.Sprintf(format, i)
		}
		return tables, nil
	case Precision:
		seen := make(map[string]struct{}, len(b.Values))
		tables := make([]string, 0, len(b.Values))
		for _, v := range b.Values {
			shard, err := p.shardOf(v)
			if err != nil {
				return nil, err
			}
			tables = appendUnique(tables, seen, root+fmt.Sprintf(format, shard))
		}
		return tables, nil
	default:
		// 没有分表键时无法确定目标分表
		return nil, nil
	}
}

func (p *ModPolicy) FinalSelection(_ string, _ EntitySpec, b Behavior, known, candidates []string) []string {
	if b.Mode == AllShards {
		return sortedUnique(append([]string(nil), known...))
	}
	return intersect(known, candidates)
}
