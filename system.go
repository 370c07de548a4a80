package memlayer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/memlayer/arena"
	"github.com/hupe1980/memlayer/freelist"
	"github.com/hupe1980/memlayer/gpurange"
	"github.com/hupe1980/memlayer/internal/resource"
	"github.com/hupe1980/memlayer/pool"
)

const highWaterLogInterval = 10 * time.Second

// System owns a backing arena and carves allocators from it.
//
// The methods of System are safe for concurrent use. The allocators it
// returns are not; each belongs to a single goroutine.
type System struct {
	mu      sync.Mutex
	opts    options
	budget  *resource.Controller
	backing *arena.Arena
	arenas  []*arena.Arena
	threads int
	closed  bool

	highWater rate.Sometimes
}

// Stats is a snapshot of a System.
type Stats struct {
	Backing        arena.Stats
	// Arenas counts arenas from NewArena that have not been released.
	Arenas         int
	ThreadContexts int
	MemoryUsage    int64
	MemoryPeak     int64
	MemoryLimit    int64
}

// New reserves backingSize bytes and returns a System carving from them.
func New(backingSize int, optFns ...Option) (*System, error) {
	opts := applyOptions(optFns)
	opts.logger = opts.logger.WithComponent("system")
	ctx := context.Background()

	s := &System{
		opts:      opts,
		budget:    resource.NewController(resource.Config{MemoryLimitBytes: opts.memoryLimit}),
		highWater: rate.Sometimes{First: 1, Interval: highWaterLogInterval},
	}

	backing, err := s.reserve(ctx, backingSize)
	if err != nil {
		return nil, err
	}
	s.backing = backing

	opts.logger.InfoContext(ctx, "memory system ready",
		"backing_bytes", backingSize,
		"memory_limit", opts.memoryLimit,
	)
	return s, nil
}

func (s *System) reserve(ctx context.Context, size int) (*arena.Arena, error) {
	a, err := arena.New(size,
		arena.WithReserver(s.opts.reserver),
		arena.WithBudget(s.budget),
	)
	err = translateError(err)
	s.opts.metricsCollector.RecordReserve(size, err)
	s.opts.logger.LogReserve(ctx, size, err)
	return a, err
}

// carve runs fn under the lock and records the bytes it took from the
// backing arena.
func (s *System) carve(component string, fn func(backing *arena.Arena) error) error {
	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	before := s.backing.Position()
	err := translateError(fn(s.backing))
	bytes := s.backing.Position() - before

	s.opts.metricsCollector.RecordCarve(component, bytes, err)
	s.opts.logger.LogCarve(ctx, component, bytes, err)

	if err == nil && s.backing.Usage() >= s.opts.highWaterMark {
		s.highWater.Do(func() {
			s.opts.logger.LogHighWater(ctx, s.backing.Position(), s.backing.Capacity())
		})
	}
	return err
}

// NewThreadContext carves a fresh pair of scratch arenas for one goroutine.
func (s *System) NewThreadContext() (*arena.ThreadContext, error) {
	var tc *arena.ThreadContext
	err := s.carve("thread_context", func(backing *arena.Arena) error {
		var err error
		tc, err = arena.NewThreadContext(backing, arena.WithScratchSize(s.opts.scratchSize))
		if err == nil {
			s.threads++
		}
		return err
	})
	return tc, err
}

// NewArena reserves a separate top-level arena of capacity bytes. It is
// charged to the memory limit and released by Close.
func (s *System) NewArena(capacity int) (*arena.Arena, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	a, err := s.reserve(context.Background(), capacity)
	if err != nil {
		return nil, err
	}
	s.arenas = append(s.liveArenas(), a)
	return a, nil
}

// NewPool carves a pool of count chunks of size bytes, aligned to align.
func (s *System) NewPool(count, size, align int) (*pool.Pool, error) {
	var p *pool.Pool
	err := s.carve("pool", func(backing *arena.Arena) error {
		var err error
		p, err = pool.New(backing, count, size, align)
		return err
	})
	return p, err
}

// NewFreeList carves a general-purpose allocator over size bytes.
func (s *System) NewFreeList(size int, opts ...freelist.Option) (*freelist.FreeList, error) {
	var fl *freelist.FreeList
	err := s.carve("freelist", func(backing *arena.Arena) error {
		var err error
		fl, err = freelist.NewFromArena(backing, size, opts...)
		return err
	})
	return fl, err
}

// NewRangeList returns a range allocator for an external buffer of capacity
// bytes. It takes no memory from the backing arena.
func (s *System) NewRangeList(capacity uint64, maxEntries int, opts ...gpurange.Option) (*gpurange.List, error) {
	var l *gpurange.List
	err := s.carve("gpurange", func(*arena.Arena) error {
		var err error
		l, err = gpurange.New(capacity, maxEntries, opts...)
		return err
	})
	return l, err
}

// GetScratch is tc.GetScratch with the lookup recorded in the metrics.
func (s *System) GetScratch(tc *arena.ThreadContext, conflicts ...*arena.Arena) arena.Temp {
	t := tc.GetScratch(conflicts...)
	s.opts.metricsCollector.RecordScratch(!t.IsZero())
	if t.IsZero() {
		s.opts.logger.LogScratchMiss(context.Background(), len(conflicts))
	}
	return t
}

// Backing returns the arena every allocator is carved from. Callers must not
// push to it concurrently with System methods.
func (s *System) Backing() *arena.Arena {
	return s.backing
}

// Stats returns a snapshot of the system.
func (s *System) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Backing:        s.backing.Stats(),
		Arenas:         len(s.liveArenas()),
		ThreadContexts: s.threads,
		MemoryUsage:    s.budget.MemoryUsage(),
		MemoryPeak:     s.budget.MemoryPeak(),
		MemoryLimit:    s.budget.MemoryLimit(),
	}
}

// liveArenas drops arenas the caller already released. s.mu must be held.
func (s *System) liveArenas() []*arena.Arena {
	live := s.arenas[:0]
	for _, a := range s.arenas {
		if !a.Released() {
			live = append(live, a)
		}
	}
	s.arenas = live
	return live
}

func (s *System) String() string {
	st := s.Stats()
	return fmt.Sprintf("System{backing: %d/%d, arenas: %d, thread contexts: %d, reserved: %d}",
		st.Backing.Position, st.Backing.Capacity, st.Arenas, st.ThreadContexts, st.MemoryUsage)
}
