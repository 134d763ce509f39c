// Package db 提供基于 GORM 的数据库组件。
//
// 在连接器之上提供：
//   - 事务封装
//   - 哈希分片（gorm.io/sharding）
//   - 表结构探查与按名建表，供 splittable 维护分表目录
//   - clog 日志适配与 otelgorm 链路追踪
//
// db 组件借用连接器的连接，不负责连接的生命周期。
//
//	sqliteConn, _ := connector.NewSQLite(&connector.SQLiteConfig{Path: "app.db"})
//	_ = sqliteConn.Connect(ctx)
//	defer sqliteConn.Close()
//
//	database, _ := db.New(&db.Config{Driver: "sqlite"},
//		db.WithSQLiteConnector(sqliteConn), db.WithLogger(logger))
//
//	tables, _ := database.ListTables(ctx)
//	err := database.CreateTables(ctx, &Order{}, "t_order_202403")
package db

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
	"gorm.io/sharding"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/xerrors"
)

// DB 定义了数据库组件的核心能力
type DB interface {
	// DB 获取绑定了 ctx 的 *gorm.DB
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// ListTables 返回当前库中的全部表名
	ListTables(ctx context.Context) ([]string, error)

	// CreateTables 在同一事务中按 model 的结构创建指定名称的表，已存在的表跳过
	CreateTables(ctx context.Context, model any, tables ...string) error

	// Close 关闭组件，连接由连接器管理
	Close() error
}

type database struct {
	client *gorm.DB
	logger clog.Logger
}

// New 创建数据库组件实例
//
// 根据 cfg.Driver 选择对应的连接器选项：
//
//	database, err := db.New(&db.Config{Driver: "mysql"}, db.WithMySQLConnector(mysqlConn))
func New(cfg *Config, opts ...Option) (DB, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger = clog.Discard()
	}

	var gormDB *gorm.DB
	switch cfg.Driver {
	case "mysql":
		if opt.mysqlConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorRequired, "mysql driver requires WithMySQLConnector")
		}
		gormDB = opt.mysqlConnector.GetClient()
	case "postgresql":
		if opt.postgresqlConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorRequired, "postgresql driver requires WithPostgreSQLConnector")
		}
		gormDB = opt.postgresqlConnector.GetClient()
	case "sqlite":
		if opt.sqliteConnector == nil {
			return nil, xerrors.Wrap(ErrConnectorRequired, "sqlite driver requires WithSQLiteConnector")
		}
		gormDB = opt.sqliteConnector.GetClient()
	}
	if gormDB == nil {
		return nil, xerrors.Wrapf(ErrConnectorRequired, "%s connector is not connected", cfg.Driver)
	}

	if cfg.EnableSharding {
		for _, rule := range cfg.ShardingRules {
			tables := make([]any, len(rule.Tables))
			for i, v := range rule.Tables {
				tables[i] = v
			}
			middleware := sharding.Register(sharding.Config{
				ShardingKey:         rule.ShardingKey,
				NumberOfShards:      rule.NumberOfShards,
				PrimaryKeyGenerator: sharding.PKSnowflake,
			}, tables...)
			if err := gormDB.Use(middleware); err != nil {
				return nil, xerrors.Wrapf(err, "failed to register sharding middleware for tables %v", rule.Tables)
			}
		}
	}

	if opt.tracer != nil {
		plugin := otelgorm.NewPlugin(otelgorm.WithTracerProvider(opt.tracer))
		// 插件注册在连接器共享的 *gorm.DB 上，同一连接器重复创建组件时忽略重复注册
		if err := gormDB.Use(plugin); err != nil && !xerrors.Is(err, gorm.ErrRegistered) {
			return nil, xerrors.Wrap(err, "failed to register otelgorm plugin")
		}
	}

	client := gormDB.Session(&gorm.Session{Logger: newGormLogger(opt.logger, opt.silentMode)})

	return &database{
		client: client,
		logger: opt.logger,
	}, nil
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

func (d *database) ListTables(ctx context.Context) ([]string, error) {
	tables, err := d.client.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, xerrors.Wrap(err, "list tables")
	}
	return tables, nil
}

func (d *database) CreateTables(ctx context.Context, model any, tables ...string) error {
	if model == nil {
		return ErrModelRequired
	}
	if len(tables) == 0 {
		return nil
	}

	return d.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		for _, name := range tables {
			m := tx.Table(name).Migrator()
			if m.HasTable(name) {
				d.logger.DebugContext(ctx, "table already exists", clog.String("table", name))
				continue
			}
			if err := m.CreateTable(model); err != nil {
				return xerrors.Wrapf(err, "create table %s", name)
			}
			d.logger.InfoContext(ctx, "table created", clog.String("table", name))
		}
		return nil
	})
}

func (d *database) Close() error {
	return nil
}
