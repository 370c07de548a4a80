// Package memlayer provides the memory-allocation layer of a real-time application.
//
// A System reserves one backing arena from the operating system and carves
// every other allocator from it:
//
//   - arena.Arena: bump allocation with O(1) reset, plus Temp save points
//   - arena.ThreadContext: two private scratch arenas per goroutine
//   - pool.Pool: fixed-size chunks with O(1) alloc and free
//   - freelist.FreeList: variable-size blocks with coalescing (first-fit or best-fit)
//   - gpurange.List: offset/size ranges into a buffer owned elsewhere (e.g. a GPU)
//
// # Quick Start
//
//	sys, err := memlayer.New(256<<20, memlayer.WithMemoryLimit(1<<30))
//	if err != nil {
//	    return err
//	}
//	defer sys.Close()
//
//	tc, _ := sys.NewThreadContext()
//	scratch := sys.GetScratch(tc)
//	defer scratch.End()
//	buf, _ := scratch.Arena().Push(4096, 64)
//
// # Scratch Arenas
//
// Functions that take an output arena from their caller and also need
// temporary memory pass that arena as a conflict, so the scratch memory can
// never alias the result:
//
//	func build(out *arena.Arena, tc *arena.ThreadContext) ([]byte, error) {
//	    scratch := tc.GetScratch(out)
//	    defer scratch.End()
//	    // ... temporary pushes on scratch.Arena(), result pushed on out ...
//	}
//
// # Errors
//
// Allocators never retry and never return partial allocations. Exhaustion is
// reported as an *ExhaustedError wrapping ErrOutOfMemory (or one of its
// refinements ErrTooManyRanges and ErrBudgetExceeded); misuse is reported as
// ErrInvalidAlignment, ErrInvalidSize, ErrInvalidFree or ErrDoubleFree. The
// only non-error failure is a scratch lookup with every arena in conflict,
// which returns the zero arena.Temp.
//
// # Concurrency
//
// System methods are safe for concurrent use. Arenas, pools, free lists and
// range lists are not and must be confined to one goroutine or guarded by the
// caller.
package memlayer
