package splittable

import "context"

// SchemaProbe 数据库表结构探测能力
//
// db.Probe 实现了该接口。
type SchemaProbe interface {
	// ListTables 返回 server 上当前存在的全部表名
	ListTables(ctx context.Context, server string) ([]string, error)

	// CreateTables 使用 model 的结构在一个事务内创建 tables，已存在的表跳过
	CreateTables(ctx context.Context, server string, model any, tables []string) error
}
