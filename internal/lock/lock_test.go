package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestLocalMutualExclusion(t *testing.T) {
	t.Parallel()
	testMutualExclusion(t, NewLocal())
}

func TestLocalIndependentKeys(t *testing.T) {
	t.Parallel()
	l := NewLocal()
	ctx := context.Background()
	releaseA, err := l.Acquire(ctx, "a")
	if err != nil {
		t.Fatalf("Acquire(a): %v", err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	releaseB, err := l.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire(b) while a is held: %v", err)
	}
	releaseB()
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	t.Parallel()
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire on held key: got %v, want deadline exceeded", err)
	}

	release()
	release() // idempotent
	if n := l.size(); n != 0 {
		t.Errorf("tracked keys after release: got %d, want 0", n)
	}
}

func TestRedisMutualExclusion(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	testMutualExclusion(t, NewRedis(rdb, "test:lock:"+time.Now().Format("150405.000000")+":", time.Second))
}

func TestLocalConcurrentRelease(t *testing.T) {
	t.Parallel()
	testConcurrentRelease(t, NewLocal())
}

func TestRedisConcurrentRelease(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	testConcurrentRelease(t, NewRedis(rdb, "test:release:"+time.Now().Format("150405.000000")+":", time.Second))
}

// testConcurrentRelease calls one release func from several goroutines and
// again after the key changed hands; the new holder must keep the key.
func testConcurrentRelease(t *testing.T, l Locker) {
	t.Helper()
	ctx := context.Background()
	release, err := l.Acquire(ctx, "slot:2")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release()
		}()
	}
	wg.Wait()

	next, err := l.Acquire(ctx, "slot:2")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	defer next()
	release()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(waitCtx, "slot:2"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire while held by new holder: got %v, want deadline exceeded", err)
	}
}

func testMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	const workers = 16
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			release, err := l.Acquire(ctx, "slot:1")
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Errorf("holders at once: got %d, want 1", maxSeen)
	}
}
