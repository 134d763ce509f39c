package dlock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceyewan/splitdb/connector"
	"github.com/ceyewan/splitdb/testkit"
)

func newRedisLockerWithConn(t *testing.T, conn connector.RedisConnector) Locker {
	t.Helper()
	locker, err := New(&Config{
		Driver:        DriverRedis,
		Prefix:        "dlock:test:",
		DefaultTTL:    10 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}, WithRedisConnector(conn), WithLogger(testkit.NewLogger()))
	if err != nil {
		t.Fatalf("failed to create redis locker: %v", err)
	}
	return locker
}

func newEtcdLockerWithConn(t *testing.T, conn connector.EtcdConnector) Locker {
	t.Helper()
	locker, err := New(&Config{
		Driver:        DriverEtcd,
		Prefix:        "/dlock/test/",
		DefaultTTL:    10 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}, WithEtcdConnector(conn), WithLogger(testkit.NewLogger()))
	if err != nil {
		t.Fatalf("failed to create etcd locker: %v", err)
	}
	return locker
}

// ============================================================================
// Redis 集成测试
// ============================================================================

func TestRedisLocker_Contention(t *testing.T) {
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	conn := testkit.NewRedisConnector(t)
	locker1 := newRedisLockerWithConn(t, conn)
	defer locker1.Close()
	locker2 := newRedisLockerWithConn(t, conn)
	defer locker2.Close()

	key := "test:" + testkit.NewID()

	ok, err := locker1.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("locker1 TryLock: ok=%v err=%v", ok, err)
	}

	ok, err = locker2.TryLock(ctx, key)
	if err != nil {
		t.Fatalf("locker2 TryLock returned error: %v", err)
	}
	if ok {
		t.Fatal("expected locker2 TryLock to fail")
	}

	shortCtx, shortCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer shortCancel()
	if err := locker2.Lock(shortCtx, key); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got: %v", err)
	}

	if err := locker1.Unlock(ctx, key); err != nil {
		t.Fatalf("locker1 Unlock failed: %v", err)
	}

	ok, err = locker2.TryLock(ctx, key)
	if err != nil || !ok {
		t.Fatalf("locker2 TryLock after unlock: ok=%v err=%v", ok, err)
	}
	_ = locker2.Unlock(ctx, key)
}

func TestRedisLocker_Watchdog(t *testing.T) {
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	conn := testkit.NewRedisConnector(t)
	locker := newRedisLockerWithConn(t, conn)
	defer locker.Close()

	key := "test:" + testkit.NewID()

	if err := locker.Lock(ctx, key, WithTTL(2*time.Second)); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// 等待超过 TTL，watchdog 续期后仍能正常释放
	time.Sleep(3 * time.Second)

	if err := locker.Unlock(ctx, key); err != nil {
		t.Fatalf("Unlock failed (watchdog may not be working): %v", err)
	}
	if err := locker.Unlock(ctx, key); !errors.Is(err, ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld, got: %v", err)
	}
}

func TestRedisLocker_SharedLockerConcurrent(t *testing.T) {
	ctx, cancel := testkit.NewContext(t, 60*time.Second)
	defer cancel()

	conn := testkit.NewRedisConnector(t)
	locker := newRedisLockerWithConn(t, conn)
	defer locker.Close()
	key := "test:" + testkit.NewID()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locker.Lock(ctx, key); err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			atomic.AddInt64(&counter, 1)
			if err := locker.Unlock(ctx, key); err != nil {
				t.Errorf("Unlock failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 10 {
		t.Fatalf("expected counter=10, got=%d", counter)
	}
}

// ============================================================================
// Etcd 集成测试
// ============================================================================

func TestEtcdLocker_LockUnlock(t *testing.T) {
	ctx, cancel := testkit.NewContext(t, 30*time.Second)
	defer cancel()

	conn := testkit.NewEtcdConnector(t)
	locker1 := newEtcdLockerWithConn(t, conn)
	defer locker1.Close()
	locker2 := newEtcdLockerWithConn(t, conn)
	defer locker2.Close()

	key := "test-" + testkit.NewID()

	if err := locker1.Lock(ctx, key); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	ok, err := locker2.TryLock(ctx, key)
	if err != nil {
		t.Fatalf("TryLock returned error: %v", err)
	}
	if ok {
		t.Fatal("expected TryLock to fail while held")
	}

	if err := locker1.Unlock(ctx, key); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	ok, err = locker2.TryLock(ctx, key, WithTTL(5*time.Second))
	if err != nil || !ok {
		t.Fatalf("TryLock after unlock: ok=%v err=%v", ok, err)
	}
	if err := locker2.Unlock(ctx, key); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
}
