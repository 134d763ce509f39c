package splittable

import (
	"sort"
	"strings"
)

// Policy 分表策略：由分表键计算候选表名，并为读操作做最终筛选
//
// 实现必须是纯函数：相同输入总是得到相同结果，写路径建表与读路径寻址依赖这一点。
type Policy interface {
	// CandidateTables 返回当前操作希望访问的分表名
	CandidateTables(root string, spec EntitySpec, b Behavior) ([]string, error)

	// FinalSelection 在已知分表中为读操作选出最终结果
	//
	// Range 模式返回周期落在区间内的全部已知分表，candidates 只是提示，可能为空；
	// Precision 模式只返回与候选完全一致的分表。
	FinalSelection(root string, spec EntitySpec, b Behavior, known, candidates []string) []string
}

// tableSet 大小写不敏感的表名集合
type tableSet map[string]struct{}

func newTableSet(tables []string) tableSet {
	s := make(tableSet, len(tables))
	for _, t := range tables {
		s[strings.ToLower(t)] = struct{}{}
	}
	return s
}

func (s tableSet) has(table string) bool {
	_, ok := s[strings.ToLower(table)]
	return ok
}

// difference 返回 candidates 中不在 known 里的表
func difference(candidates, known []string) []string {
	set := newTableSet(known)
	var diff []string
	for _, c := range candidates {
		if !set.has(c) {
			diff = append(diff, c)
		}
	}
	return diff
}

// intersect 返回 known 中出现在 candidates 里的表，使用 known 的写法，按字典序
func intersect(known, candidates []string) []string {
	set := newTableSet(candidates)
	out := make([]string, 0, len(candidates))
	for _, k := range known {
		if set.has(k) {
			out = append(out, k)
		}
	}
	return sortedUnique(out)
}

// filterPrefix 返回以 root 开头的表名，大小写不敏感
func filterPrefix(tables []string, root string) []string {
	prefix := strings.ToLower(root)
	out := make([]string, 0, len(tables))
	for _, t := range tables {
		if strings.HasPrefix(strings.ToLower(t), prefix) {
			out = append(out, t)
		}
	}
	return out
}

// splitRoot 拆出 root 之后的后缀，root 比较大小写不敏感
func splitRoot(table, root string) (string, bool) {
	if len(table) <= len(root) || !strings.EqualFold(table[:len(root)], root) {
		return "", false
	}
	return table[len(root):], true
}

func sortedUnique(tables []string) []string {
	sort.Strings(tables)
	out := tables[:0]
	for i, t := range tables {
		if i == 0 || t != tables[i-1] {
			out = append(out, t)
		}
	}
	return out
}

func appendUnique(tables []string, seen map[string]struct{}, table string) []string {
	if _, ok := seen[table]; ok {
		return tables
	}
	seen[table] = struct{}{}
	return append(tables, table)
}
