package connector

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/splitdb/xerrors"
)

// NewMySQL 创建 MySQL 连接器，实际连接在 Connect 时建立
func NewMySQL(cfg *MySQLConfig, opts ...Option) (MySQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "mysql config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid mysql config")
	}

	dsn := cfg.dsn()
	return newGormConnector(cfg.Name, "mysql", cfg.PoolConfig, func() gorm.Dialector {
		return mysql.Open(dsn)
	}, applyOptions(opts)), nil
}
