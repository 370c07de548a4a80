package memlayer_test

import (
	"errors"
	"fmt"

	"github.com/hupe1980/memlayer"
	"github.com/hupe1980/memlayer/arena"
)

func Example() {
	sys, err := memlayer.New(1<<20, memlayer.WithReserver(arena.HeapReserver{}), memlayer.WithScratchSize(64<<10))
	if err != nil {
		panic(err)
	}
	defer sys.Close()

	tc, _ := sys.NewThreadContext()

	scratch := sys.GetScratch(tc)
	buf, _ := scratch.Arena().Push(1000, 64)
	fmt.Println(len(buf), scratch.Arena().Position())
	scratch.End()
	fmt.Println(scratch.Arena().Position())

	p, _ := sys.NewPool(4, 32, 8)
	for i := 0; i < 4; i++ {
		_, _ = p.Alloc()
	}
	_, err = p.Alloc()
	fmt.Println(errors.Is(err, memlayer.ErrOutOfMemory))

	// Output:
	// 1000 1000
	// 0
	// true
}

func ExampleBasicMetricsCollector() {
	metrics := &memlayer.BasicMetricsCollector{}
	sys, _ := memlayer.New(1<<20,
		memlayer.WithReserver(arena.HeapReserver{}),
		memlayer.WithScratchSize(64<<10),
		memlayer.WithMetricsCollector(metrics),
	)
	defer sys.Close()

	tc, _ := sys.NewThreadContext()
	t := sys.GetScratch(tc)
	defer t.End()

	st := metrics.GetStats()
	fmt.Println(st.ReserveCount, st.CarveCount, st.ScratchHits)

	// Output:
	// 1 1 1
}
