// Package freelist implements a variable-size allocator over a fixed region
// with address-ordered coalescing.
//
// Each allocation is preceded by a 16-byte header recording the total block
// size and the padding that precedes the header, so Free needs only the
// returned slice. Free ranges are kept out of band; merging happens with the
// immediate neighbours only, and the merged size is the exact sum of the
// merged ranges.
//
// Two placement policies are available: FirstFit picks the lowest-addressed
// range that fits, BestFit the one leaving the least unused space.
//
// Example:
//
//	fl := freelist.New(make([]byte, 1024), freelist.WithPolicy(freelist.BestFit))
//	b, err := fl.Alloc(100, 16)
//	if err != nil {
//		return err
//	}
//	defer fl.Free(b)
package freelist
