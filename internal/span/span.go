// Package span implements an address-ordered, coalescing list of free ranges.
//
// Free ranges are kept as out-of-band records linked by index rather than as
// nodes written into the managed memory. The list is sorted by offset and
// always fully coalesced: no two records are adjacent.
package span

import (
	"errors"
)

const nilIndex = -1

var (
	// ErrFull is returned when a new record is needed but maxNodes records are in use.
	ErrFull = errors.New("span: node records exhausted")
	// ErrOverlap is returned when an inserted range overlaps a range that is already free.
	ErrOverlap = errors.New("span: range overlaps a free range")
	// ErrOutOfBounds is returned when an inserted range is empty or exceeds the capacity.
	ErrOutOfBounds = errors.New("span: range out of bounds")
)

// Range is a half-open interval [Offset, Offset+Size).
type Range struct {
	Offset uint64
	Size   uint64
}

// End returns the first offset past the range.
func (r Range) End() uint64 { return r.Offset + r.Size }

type node struct {
	off  uint64
	size uint64
	next int
}

// List is a free list over [0, capacity). Not goroutine-safe.
type List struct {
	nodes    []node
	head     int
	spare    int // recycled record slots, linked through next
	count    int
	maxNodes int
	capacity uint64
	free     uint64
}

// New returns a list whose whole capacity is a single free range.
// maxNodes caps the number of records; 0 means unbounded.
func New(capacity uint64, maxNodes int) *List {
	l := &List{
		capacity: capacity,
		maxNodes: maxNodes,
	}
	if maxNodes > 0 {
		l.nodes = make([]node, 0, maxNodes)
	}
	l.Reset()
	return l
}

// Reset returns the list to the single fully-free range.
func (l *List) Reset() {
	l.nodes = l.nodes[:0]
	l.head = nilIndex
	l.spare = nilIndex
	l.count = 0
	l.free = 0
	if l.capacity > 0 {
		l.head = l.newNode(0, l.capacity)
		l.free = l.capacity
	}
}

// Capacity returns the size of the managed space.
func (l *List) Capacity() uint64 { return l.capacity }

// FreeBytes returns the sum of all free ranges.
func (l *List) FreeBytes() uint64 { return l.free }

// Len returns the number of free ranges.
func (l *List) Len() int { return l.count }

// MaxNodes returns the record cap (0 if unbounded).
func (l *List) MaxNodes() int { return l.maxNodes }

// FitFunc reports how many bytes a request consumes from the start of r,
// or ok=false if the request does not fit in r.
type FitFunc func(r Range) (need uint64, ok bool)

// Cursor identifies a free range selected by Find.
type Cursor struct {
	Range
	// Need is the number of bytes the request consumes from the start of Range.
	Need uint64

	idx  int
	prev int
}

// Find searches the list for a range accepted by fit.
// With best set, the range leaving the least space unused wins (first found on ties);
// otherwise the first accepted range in address order is returned.
func (l *List) Find(best bool, fit FitFunc) (Cursor, bool) {
	found := Cursor{idx: nilIndex, prev: nilIndex}
	var leftover uint64

	prev := nilIndex
	for i := l.head; i != nilIndex; i = l.nodes[i].next {
		n := &l.nodes[i]
		r := Range{Offset: n.off, Size: n.size}
		need, ok := fit(r)
		if ok && need <= n.size {
			rest := n.size - need
			if found.idx == nilIndex || rest < leftover {
				found = Cursor{Range: r, Need: need, idx: i, prev: prev}
				leftover = rest
				if !best || rest == 0 {
					break
				}
			}
		}
		prev = i
	}

	return found, found.idx != nilIndex
}

// Take consumes c.Need bytes from the front of the range selected by Find.
// The remainder, if any, stays free at the same list position.
// The list must not have been modified since Find returned c.
func (l *List) Take(c Cursor) {
	n := &l.nodes[c.idx]
	if c.Need < n.size {
		n.off += c.Need
		n.size -= c.Need
		l.free -= c.Need
		return
	}

	l.free -= n.size
	l.unlink(c.idx, c.prev)
}

// Insert returns r to the free list, merging it with the free range directly
// before and the free range directly after it when they are adjacent.
func (l *List) Insert(r Range) error {
	if r.Size == 0 || r.End() > l.capacity || r.End() < r.Offset {
		return ErrOutOfBounds
	}

	prev := nilIndex
	next := l.head
	for next != nilIndex && l.nodes[next].off < r.Offset {
		prev = next
		next = l.nodes[next].next
	}

	if prev != nilIndex && l.nodes[prev].off+l.nodes[prev].size > r.Offset {
		return ErrOverlap
	}
	if next != nilIndex && r.End() > l.nodes[next].off {
		return ErrOverlap
	}

	mergePrev := prev != nilIndex && l.nodes[prev].off+l.nodes[prev].size == r.Offset
	mergeNext := next != nilIndex && r.End() == l.nodes[next].off

	switch {
	case mergePrev && mergeNext:
		l.nodes[prev].size += r.Size + l.nodes[next].size
		l.unlink(next, prev)
	case mergePrev:
		l.nodes[prev].size += r.Size
	case mergeNext:
		l.nodes[next].off = r.Offset
		l.nodes[next].size += r.Size
	default:
		if l.spare == nilIndex && l.maxNodes > 0 && len(l.nodes) >= l.maxNodes {
			return ErrFull
		}
		i := l.newNode(r.Offset, r.Size)
		l.nodes[i].next = next
		if prev == nilIndex {
			l.head = i
		} else {
			l.nodes[prev].next = i
		}
	}

	l.free += r.Size
	return nil
}

// Ranges returns the free ranges in address order.
func (l *List) Ranges() []Range {
	out := make([]Range, 0, l.count)
	l.Each(func(r Range) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Each calls fn for every free range in address order until fn returns false.
func (l *List) Each(fn func(Range) bool) {
	for i := l.head; i != nilIndex; i = l.nodes[i].next {
		if !fn(Range{Offset: l.nodes[i].off, Size: l.nodes[i].size}) {
			return
		}
	}
}

// Largest returns the size of the biggest free range.
func (l *List) Largest() uint64 {
	var max uint64
	for i := l.head; i != nilIndex; i = l.nodes[i].next {
		if l.nodes[i].size > max {
			max = l.nodes[i].size
		}
	}
	return max
}

func (l *List) newNode(off, size uint64) int {
	n := node{off: off, size: size, next: nilIndex}
	l.count++
	if l.spare != nilIndex {
		i := l.spare
		l.spare = l.nodes[i].next
		l.nodes[i] = n
		return i
	}
	l.nodes = append(l.nodes, n)
	return len(l.nodes) - 1
}

func (l *List) unlink(i, prev int) {
	if prev == nilIndex {
		l.head = l.nodes[i].next
	} else {
		l.nodes[prev].next = l.nodes[i].next
	}
	l.nodes[i] = node{next: l.spare}
	l.spare = i
	l.count--
}
