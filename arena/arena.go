package arena

import (
	"fmt"
	"unsafe"

	"github.com/hupe1980/memlayer/internal/mem"
	"github.com/hupe1980/memlayer/memerr"
)

const (
	// DefaultAlignment is the alignment used by PushDefault (8 bytes).
	DefaultAlignment = 8
	// SubArenaAlign is the alignment of a sub-arena's base within its parent.
	SubArenaAlign = 64
	// maxBaseAlign caps what BaseAlign reports.
	maxBaseAlign = 4096
)

// Stats tracks arena usage.
//
// Note on semantics:
//   - Position: current bump offset
//   - HighWater: largest Position ever reached (survives Clear)
//   - BytesWasted: cumulative alignment padding
//   - Pushes: cumulative push count
type Stats struct {
	Capacity    int
	Position    int
	HighWater   int
	BytesWasted uint64
	Pushes      uint64
}

type config struct {
	reserver Reserver
	budget   Budget
}

// Option is a configuration option for Arena.
type Option func(*config)

// WithReserver sets where a top-level arena obtains its memory.
// The default is MmapReserver.
func WithReserver(r Reserver) Option {
	return func(c *config) {
		c.reserver = r
	}
}

// WithBudget charges the reservation against b.
func WithBudget(b Budget) Option {
	return func(c *config) {
		c.budget = b
	}
}

// Arena is a bump allocator over a fixed-capacity region. Not goroutine-safe.
//
// Book-keeping lives in the Arena value itself, so the whole region is
// available to Push and offsets start at zero.
type Arena struct {
	buf       []byte
	pos       int
	highWater int
	baseAlign int
	pushes    uint64
	wasted    uint64

	region   Region
	budget   Budget
	reserved int64
	parent   *Arena
	released bool
}

// New reserves capacity bytes and returns an empty arena over them.
func New(capacity int, opts ...Option) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("arena: capacity %d: %w", capacity, memerr.ErrInvalidSize)
	}

	cfg := config{reserver: MmapReserver{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.budget != nil {
		if err := cfg.budget.AcquireMemory(int64(capacity)); err != nil {
			return nil, fmt.Errorf("arena: reserve %d bytes: %w: %w", capacity, memerr.ErrBudgetExceeded, err)
		}
	}

	region, err := cfg.reserver.Reserve(capacity)
	if err != nil {
		if cfg.budget != nil {
			cfg.budget.ReleaseMemory(int64(capacity))
		}
		return nil, fmt.Errorf("arena: reserve %d bytes: %w", capacity, err)
	}

	buf := region.Bytes()
	if len(buf) < capacity {
		_ = region.Close()
		if cfg.budget != nil {
			cfg.budget.ReleaseMemory(int64(capacity))
		}
		return nil, fmt.Errorf("arena: reserve %d bytes: region holds %d: %w", capacity, len(buf), memerr.ErrInvalidSize)
	}

	a := newArena(buf[:capacity:capacity])
	a.region = region
	a.budget = cfg.budget
	a.reserved = int64(capacity)
	return a, nil
}

// NewFromBytes returns an arena over caller-owned memory.
func NewFromBytes(buf []byte) *Arena {
	return newArena(buf[:len(buf):len(buf)])
}

func newArena(buf []byte) *Arena {
	return &Arena{
		buf:       buf,
		baseAlign: baseAlignOf(buf),
	}
}

func baseAlignOf(buf []byte) int {
	if len(buf) == 0 {
		return maxBaseAlign
	}
	addr := mem.Addr(buf)
	align := 1
	for align < maxBaseAlign && addr&uintptr(align) == 0 {
		align <<= 1
	}
	return align
}

// Sub carves a child arena of capacity bytes from a's current position.
// The child's base is aligned to SubArenaAlign. a must outlive the child.
func (a *Arena) Sub(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("arena: sub-arena capacity %d: %w", capacity, memerr.ErrInvalidSize)
	}

	buf, err := a.Push(capacity, SubArenaAlign)
	if err != nil {
		return nil, err
	}

	child := newArena(buf)
	child.parent = a
	return child, nil
}

// Push returns size bytes aligned to align, which must be a power of two.
// The returned slice has len == cap == size.
//
// A zero size is legal: one byte is reserved so the returned (empty) slice
// still points at an address no other push returns.
func (a *Arena) Push(size, align int) ([]byte, error) {
	off, err := a.PushOffset(size, align)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return a.buf[off : off : off+1], nil
	}
	return a.buf[off : off+size : off+size], nil
}

// PushDefault is Push with DefaultAlignment.
func (a *Arena) PushDefault(size int) ([]byte, error) {
	return a.Push(size, DefaultAlignment)
}

// PushZero is Push followed by zeroing the returned bytes.
func (a *Arena) PushZero(size, align int) ([]byte, error) {
	b, err := a.Push(size, align)
	if err != nil {
		return nil, err
	}
	clear(b)
	return b, nil
}

// PushOffset is Push returning the arena-relative offset of the allocation.
func (a *Arena) PushOffset(size, align int) (int, error) {
	if a.released {
		return 0, memerr.ErrReleased
	}
	if !mem.IsPowerOfTwo(align) {
		return 0, fmt.Errorf("arena: push align %d: %w", align, memerr.ErrInvalidAlignment)
	}
	if size < 0 {
		return 0, fmt.Errorf("arena: push size %d: %w", size, memerr.ErrInvalidSize)
	}

	n := size
	if n == 0 {
		n = 1
	}

	capacity := len(a.buf)
	off := mem.AlignUp(a.pos, align)
	if off > capacity || n > capacity-off {
		return 0, memerr.Exhausted(memerr.ErrOutOfMemory, "arena", uint64(n), uint64(capacity-a.pos))
	}

	a.wasted += uint64(off - a.pos)
	a.pushes++
	a.pos = off + n
	if a.pos > a.highWater {
		a.highWater = a.pos
	}
	return off, nil
}

// Position returns the current bump offset. It is the save point used by Temp.
func (a *Arena) Position() int {
	return a.pos
}

// Capacity returns the size of the arena's region.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// Remaining returns the bytes left after the current position.
func (a *Arena) Remaining() int {
	return len(a.buf) - a.pos
}

// BaseAlign returns the alignment of the region's first byte (capped at 4096).
// Offsets aligned to any power of two up to BaseAlign are also aligned as addresses.
func (a *Arena) BaseAlign() int {
	return a.baseAlign
}

// Clear resets the position to zero. Memory is not zeroed and every
// previously returned slice becomes invalid.
func (a *Arena) Clear() {
	a.pos = 0
}

// Decommit clears the arena and lets the operating system reclaim its pages.
// Memory reads as zero afterwards when the region supports it; for heap-backed
// and sub-arenas it is equivalent to Clear.
func (a *Arena) Decommit() error {
	a.pos = 0
	if a.released {
		return memerr.ErrReleased
	}
	if d, ok := a.region.(Decommitter); ok {
		return d.Decommit(0, len(a.buf))
	}
	return nil
}

// Release returns a top-level arena's memory to its source and its bytes to
// the budget. Sub-arenas only become unusable; their memory belongs to the
// parent. Release is idempotent.
func (a *Arena) Release() error {
	if a.released {
		return nil
	}
	a.released = true
	a.buf = nil
	a.pos = 0

	var err error
	if a.region != nil {
		err = a.region.Close()
		a.region = nil
	}
	if a.budget != nil {
		a.budget.ReleaseMemory(a.reserved)
		a.reserved = 0
	}
	return err
}

// Released reports whether Release has been called.
func (a *Arena) Released() bool {
	return a.released
}

// Parent returns the arena a was carved from, or nil for a top-level arena.
func (a *Arena) Parent() *Arena {
	return a.parent
}

// Bytes resolves an arena-relative offset. It returns nil if the range is
// outside the region.
func (a *Arena) Bytes(offset, size int) []byte {
	if offset < 0 || size < 0 || offset > len(a.buf) || size > len(a.buf)-offset {
		return nil
	}
	return a.buf[offset : offset+size : offset+size]
}

// Offset returns the arena-relative offset of b's first byte and whether b
// starts inside the region.
func (a *Arena) Offset(b []byte) (int, bool) {
	if len(a.buf) == 0 {
		return 0, false
	}
	base := mem.Addr(a.buf)
	p := mem.Addr(b)
	if p < base || p >= base+uintptr(len(a.buf)) {
		return 0, false
	}
	return int(p - base), true
}

// Stats returns the current arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Capacity:    len(a.buf),
		Position:    a.pos,
		HighWater:   a.highWater,
		BytesWasted: a.wasted,
		Pushes:      a.pushes,
	}
}

// Usage returns the position as a fraction of capacity.
func (a *Arena) Usage() float64 {
	if len(a.buf) == 0 {
		return 0
	}
	return float64(a.pos) / float64(len(a.buf))
}

func (a *Arena) String() string {
	return fmt.Sprintf(
		"Arena{capacity: %d, position: %d, high-water: %d, wasted: %d, pushes: %d}",
		len(a.buf), a.pos, a.highWater, a.wasted, a.pushes,
	)
}

// PushValue allocates a zeroed T inside the arena.
//
// T must not contain Go pointers: arena memory may live outside the Go heap
// and is invisible to the garbage collector.
func PushValue[T any](a *Arena) (*T, error) {
	var zero T
	b, err := a.PushZero(int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil //nolint:gosec // arena-backed value
}

// PushSlice allocates a zeroed slice of n Ts inside the arena.
// The same pointer restriction as PushValue applies.
func PushSlice[T any](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("arena: slice length %d: %w", n, memerr.ErrInvalidSize)
	}
	var zero T
	b, err := a.PushZero(n*int(unsafe.Sizeof(zero)), int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []T{}, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil //nolint:gosec // arena-backed slice
}
