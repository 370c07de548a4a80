// Package gpurange sub-allocates a buffer the CPU cannot address directly.
//
// A List hands out offset/size pairs into [0, capacity) and never touches the
// buffer itself. Free ranges are kept as a bounded number of records; when
// every record is in use a free that would need a new record fails with
// memerr.ErrTooManyRanges.
package gpurange

import (
	"errors"
	"fmt"

	"github.com/hupe1980/memlayer/internal/span"
	"github.com/hupe1980/memlayer/memerr"
)

// DefaultMaxEntries is used when New is given a non-positive entry count.
const DefaultMaxEntries = 1024

// Policy selects the free range an allocation is placed in.
type Policy int

const (
	// FirstFit takes the lowest-offset range that fits.
	FirstFit Policy = iota
	// BestFit takes the smallest range that fits.
	BestFit
)

// Option configures a List.
type Option func(*List)

// WithPolicy sets the placement policy. The default is FirstFit.
func WithPolicy(p Policy) Option {
	return func(l *List) {
		l.policy = p
	}
}

// Range is an allocated or free [Offset, Offset+Size) interval.
type Range = span.Range

// List is a range allocator over an external buffer. Not goroutine-safe.
type List struct {
	spans  *span.List
	policy Policy
}

// New returns a list whose whole capacity is free.
func New(capacity uint64, maxEntries int, opts ...Option) (*List, error) {
	if capacity == 0 {
		return nil, fmt.Errorf("gpurange: capacity 0: %w", memerr.ErrInvalidSize)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	l := &List{
		spans: span.New(capacity, maxEntries),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Alloc reserves size bytes and returns their offset. The remainder of the
// chosen range is split off in place, so only Free can fail with
// memerr.ErrTooManyRanges.
func (l *List) Alloc(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("gpurange: size 0: %w", memerr.ErrInvalidSize)
	}

	c, ok := l.spans.Find(l.policy == BestFit, func(r span.Range) (uint64, bool) {
		return size, r.Size >= size
	})
	if !ok {
		return 0, memerr.Exhausted(memerr.ErrOutOfMemory, "gpurange", size, l.spans.Largest())
	}
	l.spans.Take(c)
	return c.Offset, nil
}

// Free returns [offset, offset+size) to the list, merging it with adjacent
// free ranges.
func (l *List) Free(offset, size uint64) error {
	err := l.spans.Insert(span.Range{Offset: offset, Size: size})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, span.ErrFull):
		return memerr.Exhausted(memerr.ErrTooManyRanges, "gpurange", size, 0)
	case errors.Is(err, span.ErrOverlap):
		return fmt.Errorf("gpurange: range [%d, %d): %w", offset, offset+size, memerr.ErrDoubleFree)
	default:
		return fmt.Errorf("gpurange: range [%d, %d): %w: %w", offset, offset+size, memerr.ErrInvalidFree, err)
	}
}

// FreeAll makes the whole capacity free again.
func (l *List) FreeAll() { l.spans.Reset() }

// Capacity returns the size of the managed buffer.
func (l *List) Capacity() uint64 { return l.spans.Capacity() }

// Used returns the number of allocated bytes.
func (l *List) Used() uint64 { return l.spans.Capacity() - l.spans.FreeBytes() }

// Ranges returns the free ranges in offset order.
func (l *List) Ranges() []Range { return l.spans.Ranges() }

// Len returns the number of free-range records in use.
func (l *List) Len() int { return l.spans.Len() }

// MaxEntries returns the record cap.
func (l *List) MaxEntries() int { return l.spans.MaxNodes() }
