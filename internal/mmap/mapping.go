package mmap

import (
	"sync/atomic"
)

// Mapping represents an anonymous memory mapping.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	size   int
	closed atomic.Bool

	// unmap is the platform-specific function to unmap the memory.
	unmap func([]byte) error
}

// MapAnon reserves size bytes of zeroed, read-write memory from the operating system.
// The returned memory is page aligned.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, unmapFunc, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}

	return &Mapping{
		data:  data,
		size:  size,
		unmap: unmapFunc,
	}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}

	if m.unmap != nil && m.data != nil {
		data := m.data
		m.data = nil
		return m.unmap(data)
	}

	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// AdviseRange applies pattern to the sub-range [offset, offset+size) of the mapping.
// The range is shrunk inward to page boundaries; ranges smaller than a page are ignored.
func (m *Mapping) AdviseRange(offset, size int, pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if offset < 0 || size <= 0 || offset+size > len(m.data) {
		return nil
	}

	page := pageSize()
	start := (offset + page - 1) &^ (page - 1)
	end := (offset + size) &^ (page - 1)
	if start >= end {
		return nil
	}
	return osAdvise(m.data[start:end], pattern)
}
