package memlayer

import (
	"sync/atomic"
)

// MetricsCollector defines an interface for collecting allocation metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Allocator hot paths (Push, Alloc, Free) are never instrumented; only
// reservations, carves and scratch lookups made through a System are.
type MetricsCollector interface {
	// RecordReserve is called after memory is reserved from the operating system.
	// err is nil if successful.
	RecordReserve(bytes int, err error)

	// RecordCarve is called after an allocator is carved from the backing arena.
	// component names the allocator kind ("pool", "freelist", ...).
	RecordCarve(component string, bytes int, err error)

	// RecordScratch is called for every scratch lookup; hit is false when
	// every scratch arena conflicted.
	RecordScratch(hit bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordReserve(int, error)       {}
func (NoopMetricsCollector) RecordCarve(string, int, error) {}
func (NoopMetricsCollector) RecordScratch(bool)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	ReserveCount  atomic.Int64
	ReserveErrors atomic.Int64
	ReserveBytes  atomic.Int64
	CarveCount    atomic.Int64
	CarveErrors   atomic.Int64
	CarveBytes    atomic.Int64
	ScratchHits   atomic.Int64
	ScratchMisses atomic.Int64
}

// RecordReserve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReserve(bytes int, err error) {
	b.ReserveCount.Add(1)
	if err != nil {
		b.ReserveErrors.Add(1)
		return
	}
	b.ReserveBytes.Add(int64(bytes))
}

// RecordCarve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCarve(_ string, bytes int, err error) {
	b.CarveCount.Add(1)
	if err != nil {
		b.CarveErrors.Add(1)
		return
	}
	b.CarveBytes.Add(int64(bytes))
}

// RecordScratch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScratch(hit bool) {
	if hit {
		b.ScratchHits.Add(1)
	} else {
		b.ScratchMisses.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReserveCount:   b.ReserveCount.Load(),
		ReserveErrors:  b.ReserveErrors.Load(),
		ReserveBytes:   b.ReserveBytes.Load(),
		CarveCount:     b.CarveCount.Load(),
		CarveErrors:    b.CarveErrors.Load(),
		CarveBytes:     b.CarveBytes.Load(),
		ScratchHits:    b.ScratchHits.Load(),
		ScratchMisses:  b.ScratchMisses.Load(),
		ScratchHitRate: b.getScratchHitRate(),
	}
}

func (b *BasicMetricsCollector) getScratchHitRate() float64 {
	hits := b.ScratchHits.Load()
	total := hits + b.ScratchMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReserveCount   int64
	ReserveErrors  int64
	ReserveBytes   int64
	CarveCount     int64
	CarveErrors    int64
	CarveBytes     int64
	ScratchHits    int64
	ScratchMisses  int64
	ScratchHitRate float64
}
