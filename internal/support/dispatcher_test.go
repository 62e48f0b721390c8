package support

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAsyncDispatcher_RunsAndDrains(t *testing.T) {
	d := NewAsyncDispatcher(16, 2, time.Second, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, d.Dispatch("conv-1", "job", func(ctx context.Context) {
			ran.Add(1)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	assert.Equal(t, int32(10), ran.Load())

	assert.False(t, d.Dispatch("conv-1", "late", func(context.Context) {}))
	assert.NoError(t, d.Close(ctx))
}

func TestAsyncDispatcher_DropsWhenFull(t *testing.T) {
	d := NewAsyncDispatcher(1, 1, time.Second, zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.True(t, d.Dispatch("conv-1", "blocker", func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.True(t, d.Dispatch("conv-1", "queued", func(context.Context) {}))
	assert.False(t, d.Dispatch("conv-1", "dropped", func(context.Context) {}))

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestAsyncDispatcher_RecoversAndTimesOut(t *testing.T) {
	d := NewAsyncDispatcher(4, 1, 20*time.Millisecond, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	d.Dispatch("conv-1", "panics", func(context.Context) { panic("boom") })

	var deadlineHit atomic.Bool
	d.Dispatch("conv-1", "slow", func(ctx context.Context) {
		defer wg.Done()
		<-ctx.Done()
		deadlineHit.Store(true)
	})
	wg.Wait()
	assert.True(t, deadlineHit.Load())
	require.NoError(t, d.Close(context.Background()))
}

func TestAsyncDispatcher_KeepsOrderPerKey(t *testing.T) {
	d := NewAsyncDispatcher(256, 4, time.Second, zap.NewNop())

	var mu sync.Mutex
	seen := map[string][]int{}
	keys := []string{"conv-a", "conv-b", "conv-c", "conv-d", "conv-e"}
	for i := 0; i < 40; i++ {
		for _, key := range keys {
			key, i := key, i
			require.True(t, d.Dispatch(key, "job", func(context.Context) {
				time.Sleep(time.Duration(i%3) * 100 * time.Microsecond)
				mu.Lock()
				seen[key] = append(seen[key], i)
				mu.Unlock()
			}))
		}
	}
	require.NoError(t, d.Close(context.Background()))

	for _, key := range keys {
		require.Len(t, seen[key], 40, key)
		for i, got := range seen[key] {
			assert.Equal(t, i, got, "key %s ran job %d out of order", key, got)
		}
	}
}

func TestInlineDispatcher(t *testing.T) {
	var gotDeadline bool
	ok := InlineDispatcher{Timeout: time.Second}.Dispatch("conv-1", "x", func(ctx context.Context) {
		_, gotDeadline = ctx.Deadline()
	})
	assert.True(t, ok)
	assert.True(t, gotDeadline)
}
