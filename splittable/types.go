package splittable

import (
	"strings"

	"github.com/ceyewan/splitdb/xerrors"
)

// Granularity 分表粒度
type Granularity int

const (
	GranularityNone Granularity = iota
	GranularityYear
	GranularitySeason
	GranularityMonth
	GranularityWeek
	GranularityDay
	GranularityCustom
)

var granularityNames = [...]string{"none", "year", "season", "month", "week", "day", "custom"}

func (g Granularity) String() string {
	if g < 0 || int(g) >= len(granularityNames) {
		return "unknown"
	}
	return granularityNames[g]
}

// IsDate 报告粒度是否为内置的日期粒度
func (g Granularity) IsDate() bool {
	return g >= GranularityYear && g <= GranularityDay
}

// ParseGranularity 解析配置中的粒度，大小写不敏感，空串视为 none
func ParseGranularity(s string) (Granularity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return GranularityNone, nil
	}
	if s == "quarter" {
		return GranularitySeason, nil
	}
	for i, name := range granularityNames {
		if name == s {
			return Granularity(i), nil
		}
	}
	return GranularityNone, xerrors.Wrapf(ErrConfiguration, "unknown granularity %q", s)
}

// EntitySpec 实体的分表定义，New 之后不可变
type EntitySpec struct {
	Name        string
	RootTable   string
	Granularity Granularity
	// Provider 分表策略名，为空时日期粒度使用内置日期策略
	Provider string
	// Model 建表时使用的 gorm 模型
	Model any
}

// Sharded 报告实体是否分表
func (s EntitySpec) Sharded() bool {
	return s.Granularity != GranularityNone
}

// SelectionMode 分表选择方式
type SelectionMode int

const (
	// AllShards 不做过滤，返回全部已知分表
	AllShards SelectionMode = iota
	// Range 按分表键的区间选择
	Range
	// Precision 按分表键的值精确匹配
	Precision
)

func (m SelectionMode) String() string {
	switch m {
	case AllShards:
		return "all"
	case Range:
		return "range"
	case Precision:
		return "precision"
	default:
		return "unknown"
	}
}

// Behavior 单次请求的分表选择行为
//
// 零值表示 AllShards：读操作返回全部已知分表，插入操作使用当前周期。
type Behavior struct {
	Mode   SelectionMode
	Values []any
}

// All 返回全部分表的选择行为
func All() Behavior {
	return Behavior{Mode: AllShards}
}

// Between 返回区间选择行为，to 为 nil 时表示到当前周期
func Between(from, to any) Behavior {
	if to == nil {
		return Behavior{Mode: Range, Values: []any{from}}
	}
	return Behavior{Mode: Range, Values: []any{from, to}}
}

// Exactly 返回精确匹配的选择行为
func Exactly(values ...any) Behavior {
	return Behavior{Mode: Precision, Values: values}
}

// Operation 数据操作类型
type Operation int

const (
	OpInsert Operation = iota
	OpQuery
	OpCount
	OpExists
	OpScalar
	OpDelete
	OpUpdate
)

var operationNames = [...]string{"insert", "query", "count", "exists", "scalar", "delete", "update"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return "unknown"
	}
	return operationNames[o]
}

// Request 一次分表解析请求
type Request struct {
	Op       Operation
	Entity   string
	Server   string
	Behavior Behavior
}
