package mem

import (
	"unsafe"
)

// Alignment is the default base alignment for heap-backed regions (64 bytes, one cache line).
const Alignment = 64

// IsPowerOfTwo reports whether v is a positive power of two.
func IsPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}

// AlignUp rounds off up to the next multiple of align.
// align must be a power of two.
func AlignUp(off, align int) int {
	mask := align - 1
	return (off + mask) &^ mask
}

// AlignUp64 is AlignUp over uint64 offsets.
func AlignUp64(off, align uint64) uint64 {
	mask := align - 1
	return (off + mask) &^ mask
}

// PaddingWithHeader returns how many bytes must precede an aligned payload
// starting at or after off so that a header of headerSize bytes fits directly
// in front of it.
//
// When off is already aligned a full alignment step (rounded up to cover the
// header) is still reserved.
func PaddingWithHeader(off, align, headerSize int) int {
	mask := align - 1
	padding := 0
	if m := off & mask; m != 0 {
		padding = align - m
	}

	if padding < headerSize {
		needed := headerSize - padding
		if needed&mask != 0 {
			padding += align * (1 + needed/align)
		} else {
			padding += align * (needed / align)
		}
	}
	return padding
}

// AllocAligned allocates a byte slice of the given size whose first byte is
// aligned to align (a power of two). Non-positive sizes return nil.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align < 1 {
		align = Alignment
	}

	buf := make([]byte, size+align)

	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((uintptr(align) - (addr & uintptr(align-1))) & uintptr(align-1))

	return buf[offset : offset+size : offset+size]
}

// Addr returns the address of the first byte of b, including for zero-length
// slices that still carry a data pointer.
func Addr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b))) //nolint:gosec // address comparison only
}
