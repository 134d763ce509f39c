package connector

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ceyewan/splitdb/xerrors"
)

// NewPostgreSQL 创建 PostgreSQL 连接器，实际连接在 Connect 时建立
func NewPostgreSQL(cfg *PostgreSQLConfig, opts ...Option) (PostgreSQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "postgresql config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid postgresql config")
	}

	dsn := cfg.dsn()
	return newGormConnector(cfg.Name, "postgres", cfg.PoolConfig, func() gorm.Dialector {
		return postgres.Open(dsn)
	}, applyOptions(opts)), nil
}
