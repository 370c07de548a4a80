package memlayer

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/memlayer/arena"
	"github.com/hupe1980/memlayer/freelist"
	"github.com/hupe1980/memlayer/internal/resource"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newSystem(t *testing.T, size int, opts ...Option) *System {
	t.Helper()
	opts = append([]Option{
		WithReserver(arena.HeapReserver{Align: 4096}),
		WithScratchSize(4 << 10),
	}, opts...)
	s, err := New(size, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSystem_Carve(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s := newSystem(t, 1<<20, WithMetricsCollector(metrics))

	tc, err := s.NewThreadContext()
	require.NoError(t, err)
	assert.Same(t, s.Backing(), tc.Scratch(0).Parent())

	p, err := s.NewPool(16, 64, 64)
	require.NoError(t, err)
	assert.Equal(t, 16, p.FreeCount())

	fl, err := s.NewFreeList(4096, freelist.WithPolicy(freelist.BestFit))
	require.NoError(t, err)
	assert.Equal(t, freelist.BestFit, fl.Policy())

	rl, err := s.NewRangeList(1<<30, 64)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<30), rl.Capacity())

	st := s.Stats()
	assert.Equal(t, 1, st.ThreadContexts)
	assert.Equal(t, int64(1<<20), st.MemoryUsage)
	assert.GreaterOrEqual(t, st.Backing.Position, 2*(4<<10)+16*64+4096)

	ms := metrics.GetStats()
	assert.Equal(t, int64(1), ms.ReserveCount)
	assert.Equal(t, int64(4), ms.CarveCount)
	assert.Zero(t, ms.CarveErrors)
	assert.Equal(t, int64(st.Backing.Position), ms.CarveBytes)
}

func TestSystem_CarveExhaustion(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s := newSystem(t, 8<<10, WithMetricsCollector(metrics))

	_, err := s.NewPool(1024, 64, 8)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.True(t, IsExhausted(err))

	var ee *ExhaustedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "arena", ee.Allocator)

	assert.Equal(t, int64(1), metrics.GetStats().CarveErrors)
	assert.Zero(t, s.Backing().Position())
}

func TestSystem_FailedThreadContextLeavesBacking(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s := newSystem(t, 6<<10, WithMetricsCollector(metrics))

	_, err := s.NewThreadContext()
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Zero(t, s.Backing().Position())
	assert.Zero(t, s.Stats().ThreadContexts)

	ms := metrics.GetStats()
	assert.Equal(t, int64(1), ms.CarveErrors)
	assert.Zero(t, ms.CarveBytes)
}

func TestSystem_MemoryLimit(t *testing.T) {
	s := newSystem(t, 1<<20, WithMemoryLimit(2<<20))

	a, err := s.NewArena(1 << 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2<<20), s.Stats().MemoryUsage)

	_, err = s.NewArena(1)
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.ErrorIs(t, err, ErrOutOfMemory)

	assert.Equal(t, 1, s.Stats().Arenas)

	require.NoError(t, a.Release())
	assert.Zero(t, s.Stats().Arenas)

	_, err = s.NewArena(1 << 10)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Stats().Arenas)

	_, err = New(4<<20, WithMemoryLimit(1<<20), WithReserver(arena.HeapReserver{}))
	assert.ErrorIs(t, err, ErrBudgetExceeded)
}

func TestSystem_GetScratch(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s := newSystem(t, 1<<20, WithMetricsCollector(metrics))

	tc, err := s.NewThreadContext()
	require.NoError(t, err)

	outer := s.GetScratch(tc)
	require.False(t, outer.IsZero())
	defer outer.End()

	inner := s.GetScratch(tc, outer.Arena())
	require.False(t, inner.IsZero())
	assert.NotSame(t, outer.Arena(), inner.Arena())
	defer inner.End()

	miss := s.GetScratch(tc, outer.Arena(), inner.Arena())
	assert.True(t, miss.IsZero())

	ms := metrics.GetStats()
	assert.Equal(t, int64(2), ms.ScratchHits)
	assert.Equal(t, int64(1), ms.ScratchMisses)
	assert.InDelta(t, 2.0/3.0, ms.ScratchHitRate, 1e-9)
}

func TestSystem_ConcurrentThreadContexts(t *testing.T) {
	const workers = 8
	s := newSystem(t, 1<<20)

	var g errgroup.Group
	contexts := make([]*arena.ThreadContext, workers)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			tc, err := s.NewThreadContext()
			if err != nil {
				return err
			}
			contexts[i] = tc

			return arena.Scope(tc.Scratch(0), func(t arena.Temp) error {
				buf, err := t.Arena().Push(1024, 64)
				if err != nil {
					return err
				}
				for j := range buf {
					buf[j] = byte(i)
				}
				return nil
			})
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, workers, s.Stats().ThreadContexts)

	// Every scratch arena is distinct.
	seen := map[*arena.Arena]bool{}
	for _, tc := range contexts {
		for j := 0; j < arena.ScratchCount; j++ {
			a := tc.Scratch(j)
			require.False(t, seen[a])
			seen[a] = true
		}
	}
}

func TestSystem_HighWaterLog(t *testing.T) {
	var out syncBuffer
	logger := NewLogger(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}))
	s := newSystem(t, 16<<10, WithLogger(logger), WithHighWaterMark(0.5))

	_, err := s.NewPool(4, 1024, 64)
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "high-water")

	_, err = s.NewPool(8, 1024, 64)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "backing arena above high-water mark")
	assert.Contains(t, out.String(), "component=system")
}

func TestSystem_Close(t *testing.T) {
	s, err := New(1<<20, WithReserver(arena.HeapReserver{}), WithMemoryLimit(4<<20))
	require.NoError(t, err)

	a, err := s.NewArena(1 << 10)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.True(t, a.Released())
	assert.True(t, s.Backing().Released())
	assert.Zero(t, s.Stats().MemoryUsage)

	_, err = s.NewThreadContext()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.NewArena(1)
	assert.ErrorIs(t, err, ErrClosed)
}
