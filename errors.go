package memlayer

import (
	"errors"
	"fmt"

	"github.com/hupe1980/memlayer/internal/resource"
	"github.com/hupe1980/memlayer/memerr"
)

var (
	// ErrOutOfMemory is returned when an allocator cannot satisfy a request from its capacity.
	ErrOutOfMemory = memerr.ErrOutOfMemory
	// ErrTooManyRanges is returned when a range list has no free node records left.
	ErrTooManyRanges = memerr.ErrTooManyRanges
	// ErrInvalidAlignment is returned for alignments that are not a power of two.
	ErrInvalidAlignment = memerr.ErrInvalidAlignment
	// ErrInvalidSize is returned for sizes an allocator cannot represent.
	ErrInvalidSize = memerr.ErrInvalidSize
	// ErrInvalidFree is returned when freed memory does not belong to the allocator.
	ErrInvalidFree = memerr.ErrInvalidFree
	// ErrDoubleFree is returned when memory that is already free is freed again.
	ErrDoubleFree = memerr.ErrDoubleFree
	// ErrReleased is returned when an arena is used after Release.
	ErrReleased = memerr.ErrReleased
	// ErrBudgetExceeded is returned when a reservation would exceed the memory limit.
	ErrBudgetExceeded = memerr.ErrBudgetExceeded

	// ErrClosed is returned when a System is used after Close.
	ErrClosed = errors.New("memlayer: system closed")
)

// ExhaustedError reports a capacity-exhaustion failure with its context.
type ExhaustedError = memerr.ExhaustedError

// IsExhausted reports whether err is any form of capacity exhaustion.
func IsExhausted(err error) bool { return memerr.IsExhausted(err) }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Budget refusals surface as ErrBudgetExceeded regardless of which layer
	// hit the limit.
	if errors.Is(err, resource.ErrMemoryLimitExceeded) && !errors.Is(err, ErrBudgetExceeded) {
		return fmt.Errorf("%w: %w", ErrBudgetExceeded, err)
	}

	return err
}
