package arena

import (
	"github.com/hupe1980/memlayer/internal/mem"
	"github.com/hupe1980/memlayer/internal/mmap"
)

// Region is backing storage obtained from a Reserver.
type Region interface {
	// Bytes returns the reserved memory.
	Bytes() []byte
	// Close returns the memory to its source.
	Close() error
}

// Decommitter is implemented by regions that can hand physical pages back
// to the operating system while keeping the address range reserved.
type Decommitter interface {
	Decommit(offset, size int) error
}

// Reserver obtains backing storage for top-level arenas.
type Reserver interface {
	Reserve(size int) (Region, error)
}

// ReserverFunc adapts a function to the Reserver interface.
type ReserverFunc func(size int) (Region, error)

// Reserve implements Reserver.
func (f ReserverFunc) Reserve(size int) (Region, error) { return f(size) }

// MmapReserver reserves page-aligned anonymous memory outside the Go heap.
type MmapReserver struct{}

// Reserve implements Reserver.
func (MmapReserver) Reserve(size int) (Region, error) {
	m, err := mmap.MapAnon(size)
	if err != nil {
		return nil, err
	}
	return mappedRegion{m: m}, nil
}

type mappedRegion struct {
	m *mmap.Mapping
}

func (r mappedRegion) Bytes() []byte { return r.m.Bytes() }

func (r mappedRegion) Close() error { return r.m.Close() }

func (r mappedRegion) Decommit(offset, size int) error {
	if offset == 0 && size == r.m.Size() {
		return r.m.Advise(mmap.AccessDontNeed)
	}
	return r.m.AdviseRange(offset, size, mmap.AccessDontNeed)
}

// HeapReserver reserves memory from the Go heap, aligned to Align bytes
// (mem.Alignment if zero). It is used where anonymous mappings are unavailable
// and in tests.
type HeapReserver struct {
	Align int
}

// Reserve implements Reserver.
func (h HeapReserver) Reserve(size int) (Region, error) {
	align := h.Align
	if align == 0 {
		align = mem.Alignment
	}
	return heapRegion(mem.AllocAligned(size, align)), nil
}

type heapRegion []byte

func (r heapRegion) Bytes() []byte { return r }

func (r heapRegion) Close() error { return nil }

// Budget accounts for reserved memory. *resource.Controller satisfies it.
type Budget interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}
