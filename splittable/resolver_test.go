package splittable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ceyewan/splitdb/clog"
	"github.com/ceyewan/splitdb/dlock"
	"github.com/ceyewan/splitdb/testkit"
	"github.com/ceyewan/splitdb/xerrors"
)

const server = "main"

type order struct {
	ID        uint
	Amount    int
	CreatedAt time.Time
}

func orderConfig() *Config {
	return &Config{
		AutoCreate:  true,
		LockTimeout: 5 * time.Second,
		Entities: []EntityConfig{
			{Name: "Order", RootTable: "t_order", Granularity: "month"},
		},
	}
}

func newTestResolver(t *testing.T, cfg *Config, probe SchemaProbe, opts ...Option) *Resolver {
	t.Helper()
	base := []Option{
		WithProbe(probe),
		WithLogger(clog.Discard()),
		WithClock(fixedClock),
		WithLocation(time.UTC),
		WithModel("Order", &order{}),
	}
	r, err := New(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, r.Close()) })
	return r
}

func insert(values ...any) Request {
	return Request{Op: OpInsert, Entity: "Order", Server: server, Behavior: Exactly(values...)}
}

func TestResolve_InsertCreatesMissingShard(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	r := newTestResolver(t, orderConfig(), probe)

	tables, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)

	list, create := probe.calls()
	assert.Equal(t, 1, create)
	assert.Equal(t, [][]string{{"t_order_202403"}}, probe.created)
	assert.Equal(t, 2, list, "initial probe and refresh after creation")

	members, err := r.directory.Members(ctx, r.directory.Key("Order", server))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, members)

	// 同一周期的后续插入走缓存，不加锁不建表
	tables, err = r.Resolve(ctx, insert(time.Date(2024, 3, 28, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)
	list, create = probe.calls()
	assert.Equal(t, 1, create)
	assert.Equal(t, 2, list)
}

func TestResolve_ConcurrentInsertsCreateOnce(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	probe.createDelay = 20 * time.Millisecond
	r := newTestResolver(t, orderConfig(), probe)

	const n = 16
	var wg sync.WaitGroup
	results := make([][]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(ctx, insert("2024-03-10"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"t_order_202403"}, results[i])
	}
	_, create := probe.calls()
	assert.Equal(t, 1, create)

	tables, err := r.Resolve(ctx, Request{Op: OpQuery, Entity: "Order", Server: server, Behavior: Exactly("2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)
}

// strictPolicy 用于确认 AllShards 读取不会计算候选表
type strictPolicy struct{}

func (strictPolicy) CandidateTables(string, EntitySpec, Behavior) ([]string, error) {
	return nil, errors.New("candidate tables must not be computed")
}

func (strictPolicy) FinalSelection(string, EntitySpec, Behavior, []string, []string) []string {
	panic("final selection must not run")
}

func TestResolve_AllShardsBypassesCandidates(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "t_order_202403", "t_order_202401", "t_order_202402", "t_user")
	cfg := orderConfig()
	cfg.AutoCreate = false
	cfg.Entities[0].Provider = "strict"
	r := newTestResolver(t, cfg, probe, WithPolicy("strict", strictPolicy{}))

	for _, op := range []Operation{OpQuery, OpCount, OpExists, OpScalar, OpDelete, OpUpdate} {
		tables, err := r.Resolve(ctx, Request{Op: op, Entity: "Order", Server: server, Behavior: All()})
		require.NoError(t, err, op.String())
		assert.Equal(t, []string{"t_order_202401", "t_order_202402", "t_order_202403"}, tables, op.String())
	}
	list, _ := probe.calls()
	assert.Equal(t, 1, list)
}

func TestResolve_ReadDropsMissingShards(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "t_order_202402")
	r := newTestResolver(t, orderConfig(), probe)

	req := Request{Op: OpQuery, Entity: "Order", Server: server, Behavior: Exactly("2024-01-05", "2024-02-05")}
	tables, err := r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202402"}, tables)
	list, create := probe.calls()
	assert.Equal(t, 1, list, "a fresh probe is not repeated")
	assert.Equal(t, 0, create)

	// 目录已存在时只重新探测一次
	tables, err = r.Resolve(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202402"}, tables)
	list, create = probe.calls()
	assert.Equal(t, 2, list)
	assert.Equal(t, 0, create)

	tables, err = r.Resolve(ctx, Request{Op: OpCount, Entity: "Order", Server: server, Behavior: Exactly("2023-06-01")})
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestResolve_RangeReturnsKnownTablesInBounds(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "t_order_202402", "t_order_202403", "t_order_202405", "t_order_item_202402")
	r := newTestResolver(t, orderConfig(), probe)

	tables, err := r.Resolve(ctx, Request{
		Op:       OpQuery,
		Entity:   "Order",
		Server:   server,
		Behavior: Between("2024-01-01", "2024-03-31"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202402", "t_order_202403"}, tables)
	_, create := probe.calls()
	assert.Equal(t, 0, create)
}

func TestResolve_WideRangeReadUsesKnownShards(t *testing.T) {
	ctx := context.Background()
	cfg := orderConfig()
	cfg.Entities[0].Granularity = "day"
	probe := newFakeProbe(server, "t_order_20230105", "t_order_20240105", "t_order_20240302", "t_order_202401")
	r := newTestResolver(t, cfg, probe)

	tables, err := r.Resolve(ctx, Request{Op: OpQuery, Entity: "Order", Server: server,
		Behavior: Between("2023-01-01", "2024-03-01")})
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_20230105", "t_order_20240105"}, tables)

	// 插入需要确切的目标表，区间过宽仍然报错
	_, err = r.Resolve(ctx, Request{Op: OpInsert, Entity: "Order", Server: server,
		Behavior: Between("2023-01-01", "2024-03-01")})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrInvalidSplitValue))
	assert.True(t, xerrors.Is(err, ErrRangeTooWide))
	_, create := probe.calls()
	assert.Zero(t, create)
}

func TestResolve_CallerCancelDoesNotFailSharedRefresh(t *testing.T) {
	probe := newGatedProbe(server, "t_order_202403")
	r := newTestResolver(t, orderConfig(), probe)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, insert("2024-03-10"))
		errA <- err
	}()

	select {
	case <-probe.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first refresh never started")
	}

	type result struct {
		tables []string
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		tables, err := r.Resolve(context.Background(), insert("2024-03-10"))
		resB <- result{tables, err}
	}()
	// 等待 B 加入同一次刷新
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(probe.release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Equal(t, []string{"t_order_202403"}, res.tables)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}

	list, create := probe.calls()
	assert.Equal(t, 1, list, "both callers share one refresh")
	assert.Zero(t, create)
}

func TestResolve_InsertWithoutTargetShard(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	counting := &countingCache{Cache: newMemoryCache(t)}
	cfg := &Config{
		AutoCreate: true,
		Entities: []EntityConfig{
			{Name: "Order", RootTable: "t_order", Granularity: "custom", Provider: ModPolicyName, Shards: 4},
		},
	}
	r := newTestResolver(t, cfg, probe, WithCache(counting))

	_, err := r.Resolve(ctx, Request{Op: OpInsert, Entity: "Order", Server: server, Behavior: All()})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrNoTargetShard))
	assert.Equal(t, CodeNoTargetShard, xerrors.GetCode(err))
	assert.False(t, IsRetryable(err))

	assert.Zero(t, counting.calls.Load())
	list, create := probe.calls()
	assert.Zero(t, list)
	assert.Zero(t, create)

	tables, err := r.Resolve(ctx, Request{Op: OpInsert, Entity: "Order", Server: server, Behavior: Exactly(6)})
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_2"}, tables)
}

func TestResolve_StaleDirectoryRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "t_order_202403")
	store := newMemoryCache(t)
	r := newTestResolver(t, orderConfig(), probe, WithCache(store))

	// 目录已填充但为空，数据库里其实已有该表
	key := r.directory.Key("Order", server)
	require.NoError(t, r.directory.Replace(ctx, key, nil))

	tables, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)

	list, create := probe.calls()
	assert.Equal(t, 1, list)
	assert.Equal(t, 0, create)
}

func TestResolve_CreationFailureReleasesLock(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	probe.createErr = errors.New("ddl denied")
	cfg := orderConfig()
	cfg.LockTimeout = 200 * time.Millisecond
	r := newTestResolver(t, cfg, probe)

	_, err := r.Resolve(ctx, insert("2024-03-10"))
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrShardCreationFailed))
	assert.True(t, xerrors.Is(err, probe.createErr))
	assert.Equal(t, CodeCreationFailed, xerrors.GetCode(err))

	probe.mu.Lock()
	probe.createErr = nil
	probe.mu.Unlock()

	tables, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err, "lock must be free after a failed creation")
	assert.Equal(t, []string{"t_order_202403"}, tables)
}

func TestResolve_CreationPanicReleasesLock(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	panicked := false
	probe.onCreate = func() {
		if !panicked {
			panicked = true
			panic("driver panic")
		}
	}
	cfg := orderConfig()
	cfg.LockTimeout = 200 * time.Millisecond
	r := newTestResolver(t, cfg, probe)

	assert.Panics(t, func() { _, _ = r.Resolve(ctx, insert("2024-03-10")) })

	tables, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)
}

func TestResolve_LockTimeout(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	locker := dlock.NewLocal(dlock.WithLogger(clog.Discard()))
	t.Cleanup(func() { _ = locker.Close() })

	cfg := orderConfig()
	cfg.LockTimeout = 50 * time.Millisecond
	r := newTestResolver(t, cfg, probe, WithLocker(locker))

	require.NoError(t, locker.Lock(ctx, createLockPrefix+"Order"))
	_, err := r.Resolve(ctx, insert("2024-03-10"))
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrLockTimeout))
	assert.True(t, IsRetryable(err))
	_, create := probe.calls()
	assert.Equal(t, 0, create)

	require.NoError(t, locker.Unlock(ctx, createLockPrefix+"Order"))
	_, err = r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
}

func TestResolve_CacheUnavailable(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "t_order_202403")
	r := newTestResolver(t, orderConfig(), probe, WithCache(brokenCache{}))

	_, err := r.Resolve(ctx, insert("2024-03-10"))
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrCacheUnavailable))

	_, err = r.Resolve(ctx, Request{Op: OpQuery, Entity: "Order", Server: server})
	assert.True(t, xerrors.Is(err, ErrCacheUnavailable))

	_, create := probe.calls()
	assert.Equal(t, 0, create)
}

func TestResolve_AutoCreateDisabled(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	cfg := orderConfig()
	cfg.AutoCreate = false
	r := newTestResolver(t, cfg, probe)

	tables, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
	assert.Equal(t, []string{"t_order_202403"}, tables)
	_, create := probe.calls()
	assert.Equal(t, 0, create)
}

func TestResolve_NonShardedEntities(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server)
	cfg := &Config{
		Entities: []EntityConfig{
			{Name: "AuditLog"},
			{Name: "Order", Granularity: "none"},
			{Name: "Setting", RootTable: "sys_setting"},
		},
	}
	r := newTestResolver(t, cfg, probe)

	for name, want := range map[string]string{"AuditLog": "audit_logs", "Order": "orders", "Setting": "sys_setting"} {
		tables, err := r.Resolve(ctx, Request{Op: OpInsert, Entity: name, Server: server})
		require.NoError(t, err, name)
		assert.Equal(t, []string{want}, tables, name)
	}
	list, _ := probe.calls()
	assert.Zero(t, list)

	_, err := r.Refresh(ctx, "AuditLog", server)
	assert.True(t, xerrors.Is(err, ErrConfiguration))
}

func TestResolve_UnknownEntity(t *testing.T) {
	r := newTestResolver(t, orderConfig(), newFakeProbe(server))
	_, err := r.Resolve(context.Background(), Request{Op: OpQuery, Entity: "Invoice", Server: server})
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrUnknownEntity))
	assert.True(t, xerrors.Is(err, xerrors.ErrNotFound))
}

func TestRefresh_FiltersByRootPrefix(t *testing.T) {
	ctx := context.Background()
	probe := newFakeProbe(server, "T_ORDER_202401", "t_order_202402", "t_user", "order_202403")
	r := newTestResolver(t, orderConfig(), probe)

	tables, err := r.Refresh(ctx, "Order", server)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"T_ORDER_202401", "t_order_202402"}, tables)

	ok, err := r.directory.Exists(ctx, r.directory.Key("Order", server))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.Refresh(ctx, "Invoice", server)
	assert.True(t, xerrors.Is(err, ErrUnknownEntity))
}

func TestResolver_Entity(t *testing.T) {
	r := newTestResolver(t, orderConfig(), newFakeProbe(server))

	spec, ok := r.Entity("Order")
	require.True(t, ok)
	assert.Equal(t, "t_order", spec.RootTable)
	assert.Equal(t, GranularityMonth, spec.Granularity)
	assert.True(t, spec.Sharded())
	assert.IsType(t, &order{}, spec.Model)

	_, ok = r.Entity("Invoice")
	assert.False(t, ok)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	probe := newFakeProbe(server)
	entity := func(e EntityConfig) *Config {
		return &Config{Entities: []EntityConfig{e}}
	}

	tests := []struct {
		name string
		cfg  *Config
		opts []Option
	}{
		{name: "nil config"},
		{name: "missing name", cfg: entity(EntityConfig{Granularity: "month"}), opts: []Option{WithProbe(probe)}},
		{name: "unknown granularity", cfg: entity(EntityConfig{Name: "Order", Granularity: "hourly"}), opts: []Option{WithProbe(probe)}},
		{name: "custom without provider", cfg: entity(EntityConfig{Name: "Order", Granularity: "custom"}), opts: []Option{WithProbe(probe)}},
		{name: "unregistered provider", cfg: entity(EntityConfig{Name: "Order", Granularity: "custom", Provider: "geo"}), opts: []Option{WithProbe(probe)}},
		{name: "mod without shards", cfg: entity(EntityConfig{Name: "Order", Granularity: "custom", Provider: ModPolicyName}), opts: []Option{WithProbe(probe)}},
		{name: "sharded without probe", cfg: entity(EntityConfig{Name: "Order", Granularity: "month"})},
		{name: "auto create without model", cfg: &Config{AutoCreate: true, Entities: []EntityConfig{{Name: "Order", Granularity: "month"}}}, opts: []Option{WithProbe(probe)}},
		{name: "model for unknown entity", cfg: entity(EntityConfig{Name: "Order", Granularity: "month"}), opts: []Option{WithProbe(probe), WithModel("Invoice", &order{})}},
		{name: "duplicated entity", cfg: &Config{Entities: []EntityConfig{{Name: "Order"}, {Name: "Order"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.cfg, append([]Option{WithLogger(clog.Discard())}, tt.opts...)...)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, xerrors.Is(err, ErrConfiguration), err.Error())
			assert.Equal(t, CodeConfiguration, xerrors.GetCode(err))
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestResolve_Metrics(t *testing.T) {
	ctx := context.Background()
	meter := testkit.NewMeter(t)
	r := newTestResolver(t, orderConfig(), newFakeProbe(server), WithMeter(meter))

	_, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)
	_, err = r.Resolve(ctx, Request{Op: OpQuery, Entity: "Invoice", Server: server})
	require.Error(t, err)

	_, err = r.Resolve(ctx, Request{Op: OpQuery, Entity: "Invoice-42", Server: server})
	require.Error(t, err)

	body := testkit.Scrape(t, meter)
	assert.Contains(t, body, MetricResolveTotal)
	assert.Contains(t, body, `result="ok"`)
	assert.Contains(t, body, `result="SPLIT_UNKNOWN_ENTITY"`)
	assert.Contains(t, body, `entity="unknown"`)
	assert.NotContains(t, body, `entity="Invoice"`)
	assert.NotContains(t, body, `entity="Invoice-42"`)
	assert.Contains(t, body, MetricTablesCreated)
	assert.Contains(t, body, MetricRefreshTotal)
	assert.Contains(t, body, MetricLockWaitDuration)
	assert.Contains(t, body, MetricResolveDuration)
}

func TestResolve_Tracing(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	r := newTestResolver(t, orderConfig(), newFakeProbe(server), WithTracer(tp))

	_, err := r.Resolve(ctx, insert("2024-03-10"))
	require.NoError(t, err)

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "splittable.refresh")
	assert.Contains(t, names, "splittable.create")
}
