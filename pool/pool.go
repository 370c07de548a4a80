// Package pool implements a fixed-size chunk allocator with O(1) alloc and free.
//
// Free chunks are tracked by index in a side table instead of by links written
// into the chunks, so chunk contents are never touched by the allocator. Live
// chunks are recorded in a roaring bitmap, which makes double frees detectable.
package pool

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/memlayer/arena"
	"github.com/hupe1980/memlayer/internal/conv"
	"github.com/hupe1980/memlayer/internal/mem"
	"github.com/hupe1980/memlayer/memerr"
)

// LinkSize is the smallest chunk size a pool accepts: the size of one free-list link.
const LinkSize = 8

const nilIndex int32 = -1

// Pool hands out chunks of one size. Not goroutine-safe.
type Pool struct {
	buf        []byte
	chunkSize  int
	chunkCount int

	next []int32
	head int32
	live *roaring.Bitmap
}

// New carves chunkCount chunks from a. chunkSize is rounded up to chunkAlign,
// a power of two, and each chunk starts on a chunkAlign boundary.
// All chunks start out free.
func New(a *arena.Arena, chunkCount, chunkSize, chunkAlign int) (*Pool, error) {
	if !mem.IsPowerOfTwo(chunkAlign) {
		return nil, fmt.Errorf("pool: chunk align %d: %w", chunkAlign, memerr.ErrInvalidAlignment)
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("pool: chunk size %d: %w", chunkSize, memerr.ErrInvalidSize)
	}
	chunkSize = mem.AlignUp(chunkSize, chunkAlign)
	if chunkSize < LinkSize {
		return nil, fmt.Errorf("pool: chunk size %d smaller than a free-list link (%d): %w", chunkSize, LinkSize, memerr.ErrInvalidSize)
	}
	if chunkCount <= 0 {
		return nil, fmt.Errorf("pool: chunk count %d: %w", chunkCount, memerr.ErrInvalidSize)
	}
	if _, err := conv.IntToInt32(chunkCount); err != nil {
		return nil, fmt.Errorf("pool: chunk count: %w: %w", memerr.ErrInvalidSize, err)
	}
	if chunkSize > math.MaxInt/chunkCount {
		return nil, fmt.Errorf("pool: %d chunks of %d bytes: %w", chunkCount, chunkSize, memerr.ErrInvalidSize)
	}

	buf, err := a.Push(chunkCount*chunkSize, chunkAlign)
	if err != nil {
		return nil, fmt.Errorf("pool: carve %d chunks: %w", chunkCount, err)
	}

	p := &Pool{
		buf:        buf,
		chunkSize:  chunkSize,
		chunkCount: chunkCount,
		next:       make([]int32, chunkCount),
		live:       roaring.New(),
	}
	p.FreeAll()
	return p, nil
}

// Alloc pops a free chunk. It fails with memerr.ErrOutOfMemory when every
// chunk is in use.
func (p *Pool) Alloc() ([]byte, error) {
	if p.head == nilIndex {
		return nil, memerr.Exhausted(memerr.ErrOutOfMemory, "pool", uint64(p.chunkSize), 0)
	}

	i := p.head
	p.head = p.next[i]
	p.next[i] = nilIndex
	p.live.Add(uint32(i))
	return p.Chunk(int(i)), nil
}

// Free returns a chunk to the pool. b must start at a chunk boundary inside the
// pool's region (memerr.ErrInvalidFree) and the chunk must be in use
// (memerr.ErrDoubleFree).
func (p *Pool) Free(b []byte) error {
	i, ok := p.Index(b)
	if !ok {
		return fmt.Errorf("pool: address outside chunk boundaries: %w", memerr.ErrInvalidFree)
	}
	if !p.live.CheckedRemove(uint32(i)) {
		return fmt.Errorf("pool: chunk %d: %w", i, memerr.ErrDoubleFree)
	}

	p.next[i] = p.head
	p.head = int32(i) //nolint:gosec // i < chunkCount, which fits int32
	return nil
}

// FreeAll makes every chunk free again, in index order.
func (p *Pool) FreeAll() {
	last := p.chunkCount - 1
	for i := 0; i < last; i++ {
		p.next[i] = int32(i + 1) //nolint:gosec // chunkCount fits int32
	}
	p.next[last] = nilIndex
	p.head = 0
	p.live.Clear()
}

// Index returns the chunk index b starts at.
func (p *Pool) Index(b []byte) (int, bool) {
	base := mem.Addr(p.buf)
	addr := mem.Addr(b)
	if addr < base || addr >= base+uintptr(len(p.buf)) {
		return 0, false
	}
	off := int(addr - base)
	if off%p.chunkSize != 0 {
		return 0, false
	}
	return off / p.chunkSize, true
}

// Chunk returns chunk i.
func (p *Pool) Chunk(i int) []byte {
	lo := i * p.chunkSize
	hi := lo + p.chunkSize
	return p.buf[lo:hi:hi]
}

// ChunkSize returns the (rounded) chunk size.
func (p *Pool) ChunkSize() int { return p.chunkSize }

// ChunkCount returns the number of chunks.
func (p *Pool) ChunkCount() int { return p.chunkCount }

// Live returns the number of chunks in use.
func (p *Pool) Live() int { return int(p.live.GetCardinality()) }

// FreeCount walks the free list and returns its length.
func (p *Pool) FreeCount() int {
	n := 0
	for i := p.head; i != nilIndex; i = p.next[i] {
		n++
	}
	return n
}

// EachLive calls fn for every chunk in use, in index order.
func (p *Pool) EachLive(fn func(i int, chunk []byte)) {
	it := p.live.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		fn(i, p.Chunk(i))
	}
}
