package memlayer

import (
	"context"

	"github.com/hupe1980/memlayer/arena"
)

// Close releases every arena the System reserved, the backing arena last.
// Allocators carved from it must no longer be used. Close is idempotent.
func (s *System) Close() error {
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	ctx := context.Background()
	var firstErr error
	release := func(a *arena.Arena) {
		size := a.Capacity()
		err := a.Release()
		s.opts.logger.LogRelease(ctx, size, err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	for _, a := range s.arenas {
		release(a)
	}
	s.arenas = nil
	release(s.backing)

	return firstErr
}
