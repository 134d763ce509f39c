package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/xerrors"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     interface{ validate() error }
		wantErr bool
	}{
		{"redis ok", &RedisConfig{Addr: "127.0.0.1:6379"}, false},
		{"redis missing addr", &RedisConfig{}, true},
		{"redis negative db", &RedisConfig{Addr: "x:1", DB: -1}, true},
		{"mysql dsn only", &MySQLConfig{DSN: "user:pass@tcp(localhost:3306)/db"}, false},
		{"mysql missing host", &MySQLConfig{Username: "u", Database: "d"}, true},
		{"mysql missing database", &MySQLConfig{Host: "h", Username: "u"}, true},
		{"postgresql ok", &PostgreSQLConfig{Host: "h", Username: "u", Database: "d"}, false},
		{"postgresql missing user", &PostgreSQLConfig{Host: "h", Database: "d"}, true},
		{"sqlite defaults", &SQLiteConfig{}, false},
		{"etcd ok", &EtcdConfig{Endpoints: []string{"127.0.0.1:2379"}}, false},
		{"etcd missing endpoints", &EtcdConfig{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, xerrors.Is(err, ErrConfig))
				assert.True(t, xerrors.Is(err, xerrors.ErrInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	mysqlCfg := &MySQLConfig{Host: "db", Username: "root", Password: "pw", Database: "orders"}
	require.NoError(t, mysqlCfg.validate())
	assert.Equal(t, "default", mysqlCfg.Name)
	assert.Equal(t, 3306, mysqlCfg.Port)
	assert.Equal(t, 100, mysqlCfg.MaxOpenConns)
	assert.Equal(t, "root:pw@tcp(db:3306)/orders?charset=utf8mb4&parseTime=True&loc=Local", mysqlCfg.dsn())

	pgCfg := &PostgreSQLConfig{Host: "db", Username: "u", Password: "p", Database: "orders"}
	require.NoError(t, pgCfg.validate())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=orders sslmode=disable TimeZone=UTC", pgCfg.dsn())

	sqliteCfg := &SQLiteConfig{}
	require.NoError(t, sqliteCfg.validate())
	assert.Equal(t, 1, sqliteCfg.MaxOpenConns)
	assert.Equal(t, time.Hour, sqliteCfg.ConnMaxLifetime)
}

func TestNilConfig(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewMySQL(nil)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewPostgreSQL(nil)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewSQLite(nil)
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSQLiteConnector_Lifecycle(t *testing.T) {
	ctx := context.Background()
	conn, err := NewSQLite(&SQLiteConfig{Name: "lifecycle", Path: "file:lifecycle?mode=memory&cache=shared"},
		WithLogger(clog.Discard()))
	require.NoError(t, err)

	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.HealthCheck(ctx), ErrClientNil)

	require.NoError(t, conn.Connect(ctx))
	require.NoError(t, conn.Connect(ctx), "connect is idempotent")
	assert.True(t, conn.IsHealthy())
	assert.Equal(t, "lifecycle", conn.Name())
	assert.Equal(t, "sqlite", conn.Dialect())

	db := conn.GetClient()
	require.NotNil(t, db)
	require.NoError(t, db.Exec("CREATE TABLE t_probe (id INTEGER PRIMARY KEY)").Error)
	assert.True(t, db.Migrator().HasTable("t_probe"))
	require.NoError(t, conn.HealthCheck(ctx))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close(), "close is idempotent")
	assert.False(t, conn.IsHealthy())
	assert.Nil(t, conn.GetClient())
}

func TestRedisConnector_Unreachable(t *testing.T) {
	conn, err := NewRedis(&RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = conn.Connect(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.False(t, conn.IsHealthy())
}
