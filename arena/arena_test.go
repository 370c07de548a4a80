package arena

import (
	"errors"
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memlayer/internal/mem"
	"github.com/hupe1980/memlayer/internal/resource"
	"github.com/hupe1980/memlayer/memerr"
	"github.com/hupe1980/memlayer/testutil"
)

func newHeap(t *testing.T, capacity int) *Arena {
	t.Helper()
	a, err := New(capacity, WithReserver(HeapReserver{Align: 4096}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Release() })
	return a
}

func TestArena_New(t *testing.T) {
	t.Run("mmap backed", func(t *testing.T) {
		a, err := New(1 << 16)
		require.NoError(t, err)
		defer a.Release()

		assert.Equal(t, 1<<16, a.Capacity())
		assert.Zero(t, a.Position())
		assert.Equal(t, 4096, a.BaseAlign())
		assert.Nil(t, a.Parent())
	})

	t.Run("heap backed", func(t *testing.T) {
		a := newHeap(t, 1024)
		assert.Equal(t, 1024, a.Capacity())
		assert.Equal(t, 1024, a.Remaining())
	})

	t.Run("invalid capacity", func(t *testing.T) {
		_, err := New(0)
		assert.ErrorIs(t, err, memerr.ErrInvalidSize)
		_, err = New(-1)
		assert.ErrorIs(t, err, memerr.ErrInvalidSize)
	})

	t.Run("reserver failure", func(t *testing.T) {
		boom := errors.New("boom")
		budget := resource.NewController(resource.Config{})
		_, err := New(64, WithBudget(budget), WithReserver(ReserverFunc(func(int) (Region, error) {
			return nil, boom
		})))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, budget.MemoryUsage())
	})

	t.Run("short region", func(t *testing.T) {
		budget := resource.NewController(resource.Config{})
		region := &closeTracker{buf: make([]byte, 32)}
		_, err := New(64, WithBudget(budget), WithReserver(ReserverFunc(func(int) (Region, error) {
			return region, nil
		})))
		assert.ErrorIs(t, err, memerr.ErrInvalidSize)
		assert.True(t, region.closed)
		assert.Zero(t, budget.MemoryUsage())
	})

	t.Run("from bytes", func(t *testing.T) {
		buf := mem.AllocAligned(256, 64)
		a := NewFromBytes(buf)
		b, err := a.Push(16, 8)
		require.NoError(t, err)
		b[0] = 42
		assert.Equal(t, byte(42), buf[0])
		assert.GreaterOrEqual(t, a.BaseAlign(), 64)
	})
}

func TestArena_Push(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		a := newHeap(t, 1024)

		b, err := a.Push(100, 8)
		require.NoError(t, err)
		assert.Len(t, b, 100)
		assert.Equal(t, 100, cap(b))
		assert.Equal(t, 100, a.Position())

		b, err = a.Push(10, 16)
		require.NoError(t, err)
		off, ok := a.Offset(b)
		require.True(t, ok)
		assert.Equal(t, 112, off)
		assert.Equal(t, 122, a.Position())
	})

	t.Run("invalid alignment", func(t *testing.T) {
		a := newHeap(t, 1024)
		for _, align := range []int{0, -8, 3, 12, 100} {
			_, err := a.Push(8, align)
			assert.ErrorIs(t, err, memerr.ErrInvalidAlignment, "align %d", align)
		}
		assert.Zero(t, a.Position())
	})

	t.Run("negative size", func(t *testing.T) {
		a := newHeap(t, 1024)
		_, err := a.Push(-1, 8)
		assert.ErrorIs(t, err, memerr.ErrInvalidSize)
	})

	t.Run("zero size is unique", func(t *testing.T) {
		a := newHeap(t, 64)
		b1, err := a.Push(0, 1)
		require.NoError(t, err)
		b2, err := a.Push(0, 1)
		require.NoError(t, err)

		assert.Empty(t, b1)
		assert.Empty(t, b2)
		assert.NotEqual(t, mem.Addr(b1), mem.Addr(b2))

		o1, ok := a.Offset(b1)
		require.True(t, ok)
		o2, ok := a.Offset(b2)
		require.True(t, ok)
		assert.Equal(t, 0, o1)
		assert.Equal(t, 1, o2)
	})

	t.Run("exhaustion", func(t *testing.T) {
		a := newHeap(t, 128)
		_, err := a.Push(121, 1)
		require.NoError(t, err)

		_, err = a.Push(8, 8)
		require.ErrorIs(t, err, memerr.ErrOutOfMemory)

		var ee *memerr.ExhaustedError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "arena", ee.Allocator)
		assert.Equal(t, uint64(8), ee.Requested)
		assert.Equal(t, uint64(7), ee.Available)

		// Failed push does not move the cursor.
		assert.Equal(t, 121, a.Position())

		// Exactly filling the arena still works.
		_, err = a.Push(7, 1)
		require.NoError(t, err)
		assert.Zero(t, a.Remaining())
	})

	t.Run("alignment beyond capacity", func(t *testing.T) {
		a := newHeap(t, 100)
		_, err := a.Push(1, 1)
		require.NoError(t, err)
		_, err = a.Push(1, 128)
		assert.ErrorIs(t, err, memerr.ErrOutOfMemory)
	})
}

func TestArena_MonotonicAndDisjoint(t *testing.T) {
	const capacity = 1 << 16
	a := newHeap(t, capacity)
	rng := testutil.NewRNG(7)

	type span struct{ lo, hi uintptr }
	var spans []span
	last := 0

	for {
		size := rng.IntRange(0, 300)
		align := rng.Alignment(7)
		b, err := a.Push(size, align)
		if err != nil {
			require.ErrorIs(t, err, memerr.ErrOutOfMemory)
			break
		}

		require.GreaterOrEqual(t, a.Position(), last)
		last = a.Position()

		lo := mem.Addr(b)
		require.Zero(t, lo%uintptr(align), "address not aligned to %d", align)

		hi := lo + uintptr(max(size, 1))
		for _, s := range spans {
			require.True(t, hi <= s.lo || lo >= s.hi, "overlapping allocations")
		}
		spans = append(spans, span{lo, hi})
	}

	assert.NotEmpty(t, spans)
	assert.LessOrEqual(t, a.Position(), capacity)
}

func TestArena_Clear(t *testing.T) {
	a := newHeap(t, 256)
	b, err := a.Push(64, 8)
	require.NoError(t, err)
	b[0] = 7

	a.Clear()
	assert.Zero(t, a.Position())

	// Memory is reused and not zeroed.
	b2, err := a.Push(64, 8)
	require.NoError(t, err)
	assert.Equal(t, mem.Addr(b), mem.Addr(b2))
	assert.Equal(t, byte(7), b2[0])
	assert.Equal(t, 64, a.Stats().HighWater)
}

type closeTracker struct {
	buf    []byte
	closed bool
}

func (r *closeTracker) Bytes() []byte { return r.buf }

func (r *closeTracker) Close() error {
	r.closed = true
	return nil
}

func TestArena_Decommit(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("zero-fill after MADV_DONTNEED is Linux behavior")
	}

	a, err := New(1 << 16)
	require.NoError(t, err)
	defer a.Release()

	b, err := a.Push(1<<16, 4096)
	require.NoError(t, err)
	for i := range b {
		b[i] = 0xFF
	}

	require.NoError(t, a.Decommit())
	assert.Zero(t, a.Position())

	b, err = a.Push(1<<16, 4096)
	require.NoError(t, err)
	assert.Zero(t, b[0])
	assert.Zero(t, b[len(b)-1])
}

func TestArena_Release(t *testing.T) {
	budget := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})

	a, err := New(1<<16, WithBudget(budget))
	require.NoError(t, err)
	assert.Equal(t, int64(1<<16), budget.MemoryUsage())

	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	assert.True(t, a.Released())
	assert.Zero(t, budget.MemoryUsage())

	_, err = a.Push(8, 8)
	assert.ErrorIs(t, err, memerr.ErrReleased)
	assert.ErrorIs(t, a.Decommit(), memerr.ErrReleased)
}

func TestArena_Budget(t *testing.T) {
	budget := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 16})

	a, err := New(1<<15, WithBudget(budget), WithReserver(HeapReserver{}))
	require.NoError(t, err)
	defer a.Release()

	_, err = New(1<<16, WithBudget(budget), WithReserver(HeapReserver{}))
	assert.ErrorIs(t, err, memerr.ErrBudgetExceeded)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.True(t, memerr.IsExhausted(err))
	assert.Equal(t, int64(1<<15), budget.MemoryUsage())
}

func TestArena_Sub(t *testing.T) {
	parent := newHeap(t, 4096)
	_, err := parent.Push(3, 1)
	require.NoError(t, err)

	child, err := parent.Sub(1024)
	require.NoError(t, err)
	assert.Same(t, parent, child.Parent())
	assert.Equal(t, 1024, child.Capacity())
	assert.Equal(t, 64+1024, parent.Position())
	assert.GreaterOrEqual(t, child.BaseAlign(), SubArenaAlign)

	t.Run("offsets are relative to the child", func(t *testing.T) {
		off, err := child.PushOffset(5, 1)
		require.NoError(t, err)
		assert.Zero(t, off)

		off, err = child.PushOffset(8, 32)
		require.NoError(t, err)
		assert.Equal(t, 32, off)
	})

	t.Run("child exhaustion is independent", func(t *testing.T) {
		_, err := child.Push(2048, 8)
		assert.ErrorIs(t, err, memerr.ErrOutOfMemory)
		assert.Equal(t, 64+1024, parent.Position())
	})

	t.Run("child memory lies in parent", func(t *testing.T) {
		b, err := child.Push(16, 8)
		require.NoError(t, err)
		off, ok := parent.Offset(b)
		require.True(t, ok)
		assert.GreaterOrEqual(t, off, 64)
		assert.Less(t, off, 64+1024)
	})

	t.Run("invalid capacity", func(t *testing.T) {
		_, err := parent.Sub(0)
		assert.ErrorIs(t, err, memerr.ErrInvalidSize)
	})

	t.Run("parent exhaustion", func(t *testing.T) {
		_, err := parent.Sub(1 << 20)
		assert.ErrorIs(t, err, memerr.ErrOutOfMemory)
	})

	t.Run("release child keeps parent", func(t *testing.T) {
		require.NoError(t, child.Release())
		assert.False(t, parent.Released())
		_, err := parent.Push(8, 8)
		assert.NoError(t, err)
	})
}

func TestArena_BytesAndOffset(t *testing.T) {
	a := newHeap(t, 128)
	off, err := a.PushOffset(16, 8)
	require.NoError(t, err)

	b := a.Bytes(off, 16)
	require.Len(t, b, 16)
	b[3] = 9
	assert.Equal(t, byte(9), a.Bytes(0, 4)[3])

	assert.Nil(t, a.Bytes(-1, 4))
	assert.Nil(t, a.Bytes(120, 16))

	_, ok := a.Offset(make([]byte, 4))
	assert.False(t, ok)
}

func TestArena_Stats(t *testing.T) {
	a := newHeap(t, 1024)
	_, _ = a.Push(1, 1)
	_, _ = a.Push(8, 8)
	_, _ = a.Push(3, 4)

	s := a.Stats()
	assert.Equal(t, 1024, s.Capacity)
	assert.Equal(t, 19, s.Position)
	assert.Equal(t, 19, s.HighWater)
	assert.Equal(t, uint64(7), s.BytesWasted)
	assert.Equal(t, uint64(3), s.Pushes)
	assert.InDelta(t, 19.0/1024.0, a.Usage(), 1e-9)
	assert.Contains(t, a.String(), "position: 19")
}

type vec3 struct {
	X, Y, Z float32
}

func TestPushValueAndSlice(t *testing.T) {
	a := newHeap(t, 1024)
	_, _ = a.Push(1, 1)

	v, err := PushValue[vec3](a)
	require.NoError(t, err)
	assert.Equal(t, vec3{}, *v)
	v.X = 1

	s, err := PushSlice[uint64](a, 8)
	require.NoError(t, err)
	require.Len(t, s, 8)
	for i := range s {
		s[i] = uint64(i)
	}
	off, ok := a.Offset(unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), 1))
	require.True(t, ok)
	assert.Equal(t, 16, off)

	empty, err := PushSlice[uint32](a, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = PushSlice[uint32](a, -1)
	assert.ErrorIs(t, err, memerr.ErrInvalidSize)

	_, err = PushSlice[uint64](a, 1<<10)
	assert.ErrorIs(t, err, memerr.ErrOutOfMemory)
}
