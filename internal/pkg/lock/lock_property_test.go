// Property-based tests for concurrent balance safety.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestConcurrentBalanceSafetyProperty checks that concurrent read-modify-write
// cycles under the same key end with the sequential result.
func TestConcurrentBalanceSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initialBalance := rapid.Int64Range(1000, 100000).Draw(t, "initialBalance")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")

		amounts := make([]int64, numOps)
		expected := initialBalance
		for i := range amounts {
			amounts[i] = rapid.Int64Range(-500, 500).Draw(t, "amount")
			expected += amounts[i]
		}
		key := fmt.Sprintf("acct-%d", rapid.IntRange(1, 1000000).Draw(t, "account"))

		kl := New()
		balance := initialBalance

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				if err := kl.Lock(context.Background(), key); err != nil {
					return
				}
				balance += amount
				kl.Unlock(key)
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
		if entries(kl) != 0 {
			t.Fatalf("lock entries leaked: %d", entries(kl))
		}
	})
}

// TestIndependentKeysProperty checks that locks for different keys do not
// interfere with each other.
func TestIndependentKeysProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(2, 10).Draw(t, "numKeys")
		opsPerKey := rapid.IntRange(5, 20).Draw(t, "opsPerKey")

		kl := New()
		balances := make([]int64, numKeys)

		var wg sync.WaitGroup
		wg.Add(numKeys * opsPerKey)
		for k := 0; k < numKeys; k++ {
			for j := 0; j < opsPerKey; j++ {
				go func(k int) {
					defer wg.Done()
					key := fmt.Sprintf("acct-%d", k)
					_ = kl.Lock(context.Background(), key)
					balances[k] += 10
					kl.Unlock(key)
				}(k)
			}
		}
		wg.Wait()

		for k, b := range balances {
			if b != int64(opsPerKey)*10 {
				t.Fatalf("key %d: expected %d, got %d", k, opsPerKey*10, b)
			}
		}
	})
}

// TestTimeoutSingleHolderProperty checks that while a key is held, every
// concurrent bounded acquire gives up with ErrLockTimeout.
func TestTimeoutSingleHolderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		attempts := rapid.IntRange(5, 20).Draw(t, "attempts")
		kl := New()
		key := "acct"
		ctx := context.Background()

		if err := kl.Lock(ctx, key); err != nil {
			t.Fatalf("first Lock should succeed: %v", err)
		}

		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(attempts)
		for i := 0; i < attempts; i++ {
			go func() {
				defer wg.Done()
				if err := kl.LockWithTimeout(ctx, key, time.Millisecond); err == nil {
					wins.Add(1)
					kl.Unlock(key)
				} else if !errors.Is(err, ErrLockTimeout) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		kl.Unlock(key)

		if wins.Load() != 0 {
			t.Fatalf("acquired %d times while key was held", wins.Load())
		}
		if entries(kl) != 0 {
			t.Fatalf("lock entries leaked: %d", entries(kl))
		}
	})
}

// entries returns the number of keys with a live lock entry.
func entries(kl *KeyLock) int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.locks)
}

func TestLockWithTimeout(t *testing.T) {
	kl := New()
	ctx := context.Background()
	require.NoError(t, kl.Lock(ctx, "a"))

	err := kl.LockWithTimeout(ctx, "a", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	kl.Unlock("a")
	require.NoError(t, kl.LockWithTimeout(ctx, "a", 20*time.Millisecond))
	kl.Unlock("a")
	assert.Equal(t, 0, entries(kl))
}

func TestLockCancelledContext(t *testing.T) {
	kl := New()
	require.NoError(t, kl.Lock(context.Background(), "a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, kl.Lock(ctx, "a"), context.Canceled)

	kl.Unlock("a")
	assert.Equal(t, 0, entries(kl))
}

func TestUnlockNotHeldIsNoop(t *testing.T) {
	kl := New()
	kl.Unlock("missing")
	assert.Equal(t, 0, entries(kl))
}
