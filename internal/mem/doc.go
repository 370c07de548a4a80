// Package mem provides alignment arithmetic and aligned heap buffers.
//
// # Alignment
//
// All alignment helpers are pure functions over integer offsets. They never
// look at absolute addresses, so the same arithmetic serves a mapped arena,
// a heap byte slice or an offset into a GPU buffer.
//
// # Aligned Allocation
//
// AllocAligned returns heap memory whose first byte sits on the requested
// boundary. It backs arenas when anonymous mappings are unavailable.
package mem
