package freelist

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/memlayer/arena"
	"github.com/hupe1980/memlayer/internal/conv"
	"github.com/hupe1980/memlayer/internal/mem"
	"github.com/hupe1980/memlayer/internal/span"
	"github.com/hupe1980/memlayer/memerr"
)

const (
	// HeaderSize is the size of the allocation header written before every block.
	HeaderSize = 16
	// NodeSize is the smallest block body handed out.
	NodeSize = 16
	// MinAlign is the smallest alignment honoured; smaller requests are raised to it.
	MinAlign = 8
	// RegionAlign is the base alignment of regions carved by NewFromArena.
	RegionAlign = 64
)

// Policy selects the free range an allocation is placed in.
type Policy int

const (
	// FirstFit takes the lowest-addressed range that fits.
	FirstFit Policy = iota
	// BestFit takes the range leaving the least unused space, the lowest-addressed one on ties.
	BestFit
)

func (p Policy) String() string {
	switch p {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// Option configures a FreeList.
type Option func(*options)

type options struct {
	policy Policy
}

// WithPolicy sets the placement policy. The default is FirstFit.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// Range is a free byte range, relative to the start of the region.
type Range = span.Range

// FreeList is a general-purpose allocator over one region. Not goroutine-safe.
type FreeList struct {
	region []byte
	used   int
	spans  *span.List
	policy Policy
}

// New manages region as a single free range.
//
// Payload alignment is computed relative to the start of region, so absolute
// addresses are aligned only up to the alignment of region itself.
func New(region []byte, opts ...Option) *FreeList {
	o := options{policy: FirstFit}
	for _, opt := range opts {
		opt(&o)
	}

	return &FreeList{
		region: region,
		spans:  span.New(uint64(len(region)), 0),
		policy: o.policy,
	}
}

// NewFromArena carves a region of size bytes from a, aligned to RegionAlign.
func NewFromArena(a *arena.Arena, size int, opts ...Option) (*FreeList, error) {
	if size <= 0 {
		return nil, fmt.Errorf("freelist: region size %d: %w", size, memerr.ErrInvalidSize)
	}
	region, err := a.Push(size, RegionAlign)
	if err != nil {
		return nil, fmt.Errorf("freelist: carve region: %w", err)
	}
	return New(region, opts...), nil
}

// Alloc returns size bytes aligned to align (a power of two) relative to the
// region start. Requests smaller than NodeSize consume NodeSize bytes; the
// returned slice has length size. Fails with memerr.ErrOutOfMemory when no
// free range can hold the block.
func (f *FreeList) Alloc(size, align int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("freelist: size %d: %w", size, memerr.ErrInvalidSize)
	}
	if !mem.IsPowerOfTwo(align) {
		return nil, fmt.Errorf("freelist: align %d: %w", align, memerr.ErrInvalidAlignment)
	}

	body := max(size, NodeSize)
	align = max(align, MinAlign)

	fit := func(r span.Range) (uint64, bool) {
		off, err := conv.Uint64ToInt(r.Offset)
		if err != nil {
			return 0, false
		}
		padding := mem.PaddingWithHeader(off, align, HeaderSize)
		return uint64(body + padding), true //nolint:gosec // both terms are non-negative
	}

	c, ok := f.spans.Find(f.policy == BestFit, fit)
	if !ok {
		return nil, memerr.Exhausted(memerr.ErrOutOfMemory, "freelist", uint64(body), f.spans.Largest()) //nolint:gosec // body > 0
	}
	f.spans.Take(c)

	blockSize := int(c.Need) //nolint:gosec // bounded by the region length
	start := int(c.Offset)   //nolint:gosec // bounded by the region length
	padding := blockSize - body
	payload := start + padding

	hdr := f.region[payload-HeaderSize : payload]
	binary.LittleEndian.PutUint64(hdr[0:8], uint64(blockSize))          //nolint:gosec // positive
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(padding-HeaderSize)) //nolint:gosec // padding >= HeaderSize

	f.used += blockSize
	return f.region[payload : payload+size : payload+body], nil
}

// Free returns a block obtained from Alloc. The block is merged with the free
// ranges directly before and after it.
//
// Fails with memerr.ErrInvalidFree when b was not allocated from this list and
// with memerr.ErrDoubleFree when the block is already free.
func (f *FreeList) Free(b []byte) error {
	r, err := f.block(b)
	if err != nil {
		return err
	}

	if err := f.spans.Insert(r); err != nil {
		if errors.Is(err, span.ErrOverlap) {
			return fmt.Errorf("freelist: block at %d: %w", r.Offset, memerr.ErrDoubleFree)
		}
		return fmt.Errorf("freelist: block at %d: %w: %w", r.Offset, memerr.ErrInvalidFree, err)
	}

	f.used -= int(r.Size) //nolint:gosec // bounded by the region length
	return nil
}

// block reconstructs the full range [start, start+blockSize) of an allocation.
func (f *FreeList) block(b []byte) (span.Range, error) {
	base := mem.Addr(f.region)
	addr := mem.Addr(b)
	if len(f.region) == 0 || addr < base+HeaderSize || addr >= base+uintptr(len(f.region)) {
		return span.Range{}, fmt.Errorf("freelist: address outside region: %w", memerr.ErrInvalidFree)
	}

	payload := int(addr - base) //nolint:gosec // addr lies inside the region
	hdr := f.region[payload-HeaderSize : payload]
	blockSize := binary.LittleEndian.Uint64(hdr[0:8])
	pad := binary.LittleEndian.Uint64(hdr[8:16])

	lead := uint64(payload) //nolint:gosec // non-negative
	if pad > lead-HeaderSize {
		return span.Range{}, fmt.Errorf("freelist: corrupt header at %d: %w", payload, memerr.ErrInvalidFree)
	}
	start := lead - HeaderSize - pad
	if blockSize < HeaderSize+pad+NodeSize || start+blockSize > uint64(len(f.region)) {
		return span.Range{}, fmt.Errorf("freelist: corrupt header at %d: %w", payload, memerr.ErrInvalidFree)
	}

	return span.Range{Offset: start, Size: blockSize}, nil
}

// FreeAll releases every allocation at once.
func (f *FreeList) FreeAll() {
	f.spans.Reset()
	f.used = 0
}

// Used returns the bytes held by live blocks, headers and padding included.
func (f *FreeList) Used() int { return f.used }

// Size returns the region size.
func (f *FreeList) Size() int { return len(f.region) }

// Available returns the bytes not held by any block.
func (f *FreeList) Available() int { return len(f.region) - f.used }

// FreeRanges returns the free ranges in address order.
func (f *FreeList) FreeRanges() []Range { return f.spans.Ranges() }

// Policy returns the placement policy.
func (f *FreeList) Policy() Policy { return f.policy }

// Offset returns the region-relative offset of b.
func (f *FreeList) Offset(b []byte) (int, bool) {
	base := mem.Addr(f.region)
	addr := mem.Addr(b)
	if len(f.region) == 0 || addr < base || addr >= base+uintptr(len(f.region)) {
		return 0, false
	}
	return int(addr - base), true //nolint:gosec // addr lies inside the region
}
