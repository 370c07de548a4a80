package freelist_test

import (
	"fmt"

	"github.com/hupe1980/memlayer/freelist"
)

func Example() {
	fl := freelist.New(make([]byte, 1024))

	a, _ := fl.Alloc(100, 8)
	b, _ := fl.Alloc(200, 8)
	fmt.Println(fl.Used(), len(fl.FreeRanges()))

	_ = fl.Free(a)
	_ = fl.Free(b)
	fmt.Println(fl.Used(), fl.FreeRanges())

	// Output:
	// 336 1
	// 0 [{0 1024}]
}
