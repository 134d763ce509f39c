package connector

import (
	"context"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/metrics"
	"github.com/ceyewan/splitdb/xerrors"
)

type etcdConnector struct {
	cfg      *EtcdConfig
	logger   clog.Logger
	connects metrics.Counter

	mu      sync.RWMutex
	client  *clientv3.Client
	healthy atomic.Bool
}

// NewEtcd 创建 Etcd 连接器，客户端在 Connect 时创建
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is nil")
	}
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(err, "invalid etcd config")
	}
	opt := applyOptions(opts)

	return &etcdConnector{
		cfg:      cfg,
		logger:   opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
		connects: opt.connectCounter(),
	}, nil
}

func (c *etcdConnector) Connect(ctx context.Context) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return nil
	}
	defer func() {
		c.connects.Inc(ctx, metrics.L("connector", "etcd"), metrics.L("name", c.cfg.Name), resultLabel(err))
	}()

	c.logger.Info("attempting to connect to etcd", clog.Strings("endpoints", c.cfg.Endpoints))

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            c.cfg.Endpoints,
		Username:             c.cfg.Username,
		Password:             c.cfg.Password,
		DialTimeout:          c.cfg.DialTimeout,
		DialKeepAliveTime:    c.cfg.KeepAliveTime,
		DialKeepAliveTimeout: c.cfg.KeepAliveTimeout,
	})
	if err != nil {
		c.logger.Error("failed to create etcd client", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	if err := c.ping(ctx, client); err != nil {
		_ = client.Close()
		c.logger.Error("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "etcd connector[%s]: %v", c.cfg.Name, err)
	}

	c.client = client
	c.healthy.Store(true)
	c.logger.Info("successfully connected to etcd", clog.Strings("endpoints", c.cfg.Endpoints))
	return nil
}

// ping 对第一个端点查询状态
func (c *etcdConnector) ping(ctx context.Context, client *clientv3.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	_, err := client.Status(pingCtx, c.cfg.Endpoints[0])
	return err
}

func (c *etcdConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Error("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Info("etcd connection closed")
	return nil
}

func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	client := c.GetClient()
	if client == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "etcd connector[%s]", c.cfg.Name)
	}
	if err := c.ping(ctx, client); err != nil {
		c.healthy.Store(false)
		c.logger.Warn("etcd health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "etcd connector[%s]: %v", c.cfg.Name, err)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
