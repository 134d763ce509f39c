package metrics

// Label 指标标签
//
// 标签值应保持低基数：实体名、操作类型、结果，不要放表名或分片值。
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
//
//	counter.Inc(ctx, metrics.L("entity", "order"), metrics.L("op", "insert"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
