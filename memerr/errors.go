// Package memerr defines the error taxonomy shared by every allocator.
//
// Capacity exhaustion, invalid alignment and invalid frees are reported as
// error values wrapping one of the sentinels below. Allocators never retry and
// never hand out a partial allocation.
package memerr

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when an allocator cannot satisfy a request from its capacity.
	ErrOutOfMemory = errors.New("out of memory")
	// ErrTooManyRanges is returned when a range list has no free node records left.
	// It is a form of capacity exhaustion and matches ErrOutOfMemory with errors.Is.
	ErrTooManyRanges error = &kindError{msg: "too many free ranges", parent: ErrOutOfMemory}
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = errors.New("alignment must be a power of two")
	// ErrInvalidSize is returned for negative sizes or chunks too small to hold a free-list link.
	ErrInvalidSize = errors.New("invalid size")
	// ErrInvalidFree is returned when a freed address does not belong to the allocator.
	ErrInvalidFree = errors.New("invalid free")
	// ErrDoubleFree is returned when memory that is already free is freed again.
	ErrDoubleFree error = &kindError{msg: "double free", parent: ErrInvalidFree}
	// ErrReleased is returned when an arena is used after Release.
	ErrReleased = errors.New("arena released")
	// ErrBudgetExceeded is returned when a reservation would exceed the memory budget.
	ErrBudgetExceeded error = &kindError{msg: "memory budget exceeded", parent: ErrOutOfMemory}
)

// kindError is a sentinel that is also a more specific form of another sentinel.
type kindError struct {
	msg    string
	parent error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.parent }

// ExhaustedError reports a capacity-exhaustion failure with its context.
//
// The kind (ErrOutOfMemory, ErrTooManyRanges, ...) can be matched with errors.Is.
type ExhaustedError struct {
	Allocator string
	Requested uint64
	Available uint64
	kind      error
}

// Exhausted returns an *ExhaustedError of the given kind.
func Exhausted(kind error, allocator string, requested, available uint64) *ExhaustedError {
	return &ExhaustedError{
		Allocator: allocator,
		Requested: requested,
		Available: available,
		kind:      kind,
	}
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: %v: requested %d bytes, %d available", e.Allocator, e.kind, e.Requested, e.Available)
}

func (e *ExhaustedError) Unwrap() error { return e.kind }

// IsExhausted reports whether err is any form of capacity exhaustion.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrOutOfMemory)
}
