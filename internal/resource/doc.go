// Package resource implements the memory budget shared by every top-level arena.
//
// A Controller tracks bytes reserved from the operating system and optionally
// enforces a hard limit with a weighted semaphore. Acquisition is fail-fast:
// AcquireMemory never blocks and returns ErrMemoryLimitExceeded immediately
// when the limit would be crossed.
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(64 << 20); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(64 << 20)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops.
// This allows optional budgeting without nil checks everywhere.
package resource
