// Package arena provides bump allocation, scoped temporary regions and
// per-goroutine scratch arenas.
//
// # Arena
//
// An Arena hands out memory from a fixed-capacity region by advancing a
// single cursor. There is no per-allocation free: Clear rewinds the cursor
// and Temp restores a saved position. Top-level arenas reserve their region
// once (anonymous mmap by default) and return it with Release; sub-arenas are
// carved from a parent with Sub and share its lifetime.
//
// Alignment is computed on arena-relative offsets, never on absolute
// addresses, so a sub-arena's layout does not depend on where it was carved.
// Offsets aligned to at most BaseAlign() are also aligned as addresses.
//
//	a, err := arena.New(1 << 20)
//	if err != nil { ... }
//	defer a.Release()
//
//	buf, err := a.Push(256, 16)
//
// # Temp
//
//	t := arena.Begin(a)
//	defer t.End()
//
// Temps on one arena must end in LIFO order. Scope wraps Begin/End around a
// function so the region is reclaimed on every exit path.
//
// # Scratch
//
// A ThreadContext owns two scratch arenas. GetScratch returns a Temp on the
// first one not named as a conflict, so a callee that passes its caller's
// scratch arena never aliases it:
//
//	func build(tc *arena.ThreadContext, out *arena.Arena) error {
//	    scratch := tc.GetScratch(out)
//	    if scratch.IsZero() {
//	        return errNoScratch
//	    }
//	    defer scratch.End()
//	    ...
//	}
//
// # Errors
//
// Exhaustion and invalid arguments are reported as errors wrapping the
// sentinels of package memerr. Nothing is retried and no partial allocation
// is ever returned. Running out of non-conflicting scratch arenas is not an
// error; it is signalled by the zero Temp.
//
// # Concurrency
//
// Arenas are not goroutine-safe. Each goroutine should own its ThreadContext.
package arena
