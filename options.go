package memlayer

import (
	"log/slog"

	"github.com/hupe1980/memlayer/arena"
)

// DefaultHighWaterMark is the backing-arena usage above which a System warns.
const DefaultHighWaterMark = 0.9

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	reserver         arena.Reserver
	scratchSize      int
	highWaterMark    float64
}

// Option configures a System.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for reservations,
// carves and scratch lookups. Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &memlayer.BasicMetricsCollector{}
//	sys, _ := memlayer.New(64<<20, memlayer.WithMetricsCollector(metrics))
//	// ... use sys ...
//	stats := metrics.GetStats()
//	fmt.Printf("Carves: %d, scratch hit rate: %.2f\n", stats.CarveCount, stats.ScratchHitRate)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := memlayer.NewJSONLogger(slog.LevelInfo)
//	sys, _ := memlayer.New(64<<20, memlayer.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMemoryLimit caps the total bytes a System reserves from the operating
// system, the backing arena included. Zero means unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithReserver sets where arenas get their memory. The default is
// arena.MmapReserver.
func WithReserver(r arena.Reserver) Option {
	return func(o *options) {
		o.reserver = r
	}
}

// WithScratchSize sets the size of each scratch arena in a thread context.
func WithScratchSize(size int) Option {
	return func(o *options) {
		o.scratchSize = size
	}
}

// WithHighWaterMark sets the backing-arena usage fraction (0, 1] above which
// a throttled warning is logged.
func WithHighWaterMark(fraction float64) Option {
	return func(o *options) {
		o.highWaterMark = fraction
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		reserver:         arena.MmapReserver{},
		scratchSize:      arena.DefaultScratchSize,
		highWaterMark:    DefaultHighWaterMark,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
