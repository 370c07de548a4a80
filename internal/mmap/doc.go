// Package mmap provides anonymous memory mappings used as arena backing storage.
//
// # Overview
//
// MapAnon reserves read-write memory directly from the operating system,
// outside the Go garbage collector's control. Top-level arenas obtain their
// backing region exactly once through MapAnon and hand it back with Close at
// shutdown.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2) with MAP_ANON|MAP_PRIVATE, madvise(2) for hints
//   - Windows: VirtualAlloc with MEM_RESERVE|MEM_COMMIT (madvise is a no-op)
//
// # Thread Safety
//
// Close is idempotent and protected by atomic operations. Callers must ensure
// no goroutines access Bytes() after Close() returns.
package mmap
