// Package conv provides checked integer conversions.
//
// Allocators speak int for byte slices and uint64 for device offsets; these
// helpers move between the two and into the int32 index space used by
// index-linked free lists without silent wrap-around.
package conv
