package arena

import (
	"context"
	"fmt"
)

const (
	// ScratchCount is the number of scratch arenas per thread context.
	// Two suffice: the caller holds at most one, so a callee that names it
	// as a conflict always gets the other.
	ScratchCount = 2
	// DefaultScratchSize is the capacity of each scratch arena (32 MiB).
	DefaultScratchSize = 32 << 20
)

// ThreadOption configures a ThreadContext.
type ThreadOption func(*threadConfig)

type threadConfig struct {
	scratchSize int
}

// WithScratchSize sets the capacity of each scratch arena.
func WithScratchSize(size int) ThreadOption {
	return func(c *threadConfig) {
		c.scratchSize = size
	}
}

// ThreadContext holds the private scratch arenas of one goroutine.
//
// It replaces implicit thread-local storage: pass it down explicitly or
// carry it in a context.Context with NewContext. Slices obtained from its
// arenas must not cross goroutines or outlive the Temp that produced them.
type ThreadContext struct {
	scratch [ScratchCount]*Arena
}

// NewThreadContext carves ScratchCount scratch arenas from backing.
// backing is not synchronized; callers sharing it must serialize calls.
func NewThreadContext(backing *Arena, opts ...ThreadOption) (*ThreadContext, error) {
	cfg := threadConfig{scratchSize: DefaultScratchSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A failed carve must not leave earlier scratch arenas behind.
	saved := Begin(backing)

	tc := &ThreadContext{}
	for i := range tc.scratch {
		a, err := backing.Sub(cfg.scratchSize)
		if err != nil {
			saved.End()
			return nil, fmt.Errorf("arena: thread context scratch %d: %w", i, err)
		}
		tc.scratch[i] = a
	}
	return tc, nil
}

// GetScratch begins a Temp on the first scratch arena not listed in conflicts.
// If every scratch arena conflicts it returns the zero Temp, which callers
// must check with IsZero.
//
//	scratch := tc.GetScratch(callerArena)
//	defer scratch.End()
func (tc *ThreadContext) GetScratch(conflicts ...*Arena) Temp {
	for _, a := range tc.scratch {
		if !contains(conflicts, a) {
			return Begin(a)
		}
	}
	return Temp{}
}

func contains(list []*Arena, a *Arena) bool {
	for _, c := range list {
		if c == a {
			return true
		}
	}
	return false
}

// Scratch returns the i-th scratch arena.
func (tc *ThreadContext) Scratch(i int) *Arena {
	return tc.scratch[i]
}

// Owns reports whether a is one of tc's scratch arenas.
func (tc *ThreadContext) Owns(a *Arena) bool {
	return contains(tc.scratch[:], a)
}

type threadContextKey struct{}

// NewContext returns a copy of ctx carrying tc.
func NewContext(ctx context.Context, tc *ThreadContext) context.Context {
	return context.WithValue(ctx, threadContextKey{}, tc)
}

// FromContext returns the ThreadContext carried by ctx.
func FromContext(ctx context.Context) (*ThreadContext, bool) {
	tc, ok := ctx.Value(threadContextKey{}).(*ThreadContext)
	return tc, ok && tc != nil
}
