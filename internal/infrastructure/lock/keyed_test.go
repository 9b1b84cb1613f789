package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/infrastructure/lock"
)

func TestKeyedMutex_ExcludesSameKey(t *testing.T) {
	k := lock.NewKeyedMutex()
	ctx := context.Background()

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, []string{"a", "b"})
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak.Load(), "nunca debe haber dos dueños de la misma clave")
}

func TestKeyedMutex_DisjointKeysDoNotBlock(t *testing.T) {
	k := lock.NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, []string{"a"})
	require.NoError(t, err)
	defer unlockA()

	ctx2, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := k.Lock(ctx2, []string{"b"})
	require.NoError(t, err, "claves distintas no compiten")
	unlockB()
}

func TestKeyedMutex_ContextCancelReleasesHeld(t *testing.T) {
	k := lock.NewKeyedMutex()
	ctx := context.Background()

	unlockB, err := k.Lock(ctx, []string{"b"})
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = k.Lock(ctx2, []string{"a", "b"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// "a" debió liberarse al fallar "b".
	ctx3, cancel3 := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel3()
	unlockA, err := k.Lock(ctx3, []string{"a"})
	require.NoError(t, err)
	unlockA()
	unlockB()
}

func TestKeyedMutex_EmptyKeysAndDoubleUnlock(t *testing.T) {
	k := lock.NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), nil)
	require.NoError(t, err)
	unlock()

	unlock, err = k.Lock(context.Background(), []string{"a"})
	require.NoError(t, err)
	unlock()
	assert.NotPanics(t, unlock, "liberar dos veces no debe fallar")
}
