package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

// gormConnector MySQL、PostgreSQL、SQLite 共用的连接生命周期
type gormConnector struct {
	name      string
	dialect   string
	dialector func() gorm.Dialector
	pool      PoolConfig
	logger    clog.Logger
	connects  metrics.Counter

	mu      sync.RWMutex
	db      *gorm.DB
	healthy atomic.Bool
}

func newGormConnector(name, dialect string, pool PoolConfig, dialector func() gorm.Dialector, opt *options) *gormConnector {
	return &gormConnector{
		name:      name,
		dialect:   dialect,
		dialector: dialector,
		pool:      pool,
		logger:    opt.logger.With(clog.String("connector", dialect), clog.String("name", name)),
		connects:  opt.connectCounter(),
	}
}

// Connect 打开连接池并 Ping，幂等
func (c *gormConnector) Connect(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}
	defer func() {
		c.connects.Inc(ctx, metrics.L("connector", c.dialect), metrics.L("name", c.name), resultLabel(err))
	}()

	c.logger.Info("attempting to connect")

	// SQL 日志由 db 组件通过 Session 接管
	db, err := gorm.Open(c.dialector(), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		c.logger.Error("failed to open connection", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: %v", c.dialect, c.name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: failed to get db instance: %v", c.dialect, c.name, err)
	}
	sqlDB.SetMaxIdleConns(c.pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(c.pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(c.pool.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		c.logger.Error("failed to ping", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: ping failed: %v", c.dialect, c.name, err)
	}

	c.db = db
	c.healthy.Store(true)
	c.logger.Info("successfully connected")
	return nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close connection", clog.Error(err))
		return err
	}
	c.db = nil
	c.logger.Info("connection closed")
	return nil
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	db := c.GetClient()
	if db == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "%s connector[%s]", c.dialect, c.name)
	}

	sqlDB, err := db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "%s connector[%s]: %v", c.dialect, c.name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *gormConnector) Name() string {
	return c.name
}

func (c *gormConnector) Dialect() string {
	return c.dialect
}

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
