// Package testutil provides testing utilities for memlayer.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe RNG with helpers for generating
// allocation workloads: request sizes, power-of-two alignments and
// skewed (Zipfian) size distributions that resemble real frame workloads.
//
//	rng := testutil.NewRNG(seed)
//	size := rng.IntRange(1, 256)
//	align := rng.Alignment(6) // 1..64
//	size = rng.SkewedSize(4096, 1.2)
package testutil
