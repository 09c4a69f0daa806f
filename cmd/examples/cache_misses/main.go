package main

import (
	"fmt"
	"math/rand"

	"github.com/dylandreimerink/goperf"
	"github.com/dylandreimerink/goperf/perfsys"
	"github.com/dylandreimerink/goperf/perftypes"
)

// This example compares the L1 data cache miss ratio of a sequential and a random walk over the same slice.

var sink uint64

func main() {
	loads, err := goperf.NewCounter(perftypes.CacheEvent{
		Cache:  perftypes.PERF_COUNT_HW_CACHE_L1D,
		Op:     perftypes.PERF_COUNT_HW_CACHE_OP_READ,
		Result: perftypes.PERF_COUNT_HW_CACHE_RESULT_ACCESS,
	}, perfsys.AttrOpts{Flags: perftypes.AttrFlagsExcludeKernel | perftypes.AttrFlagsExcludeHV})
	if err != nil {
		panic(err)
	}
	defer loads.Close()

	// Same event, but built from its perf tool name
	misses, err := goperf.NewNamedCounter("L1-dcache-load-misses:u", perfsys.AttrOpts{})
	if err != nil {
		panic(err)
	}
	defer misses.Close()

	data := make([]uint64, 1<<22)
	sequential := make([]int, len(data))
	for i := range sequential {
		sequential[i] = i
	}
	random := rand.Perm(len(data))

	for _, walk := range []struct {
		name  string
		order []int
	}{
		{name: "sequential", order: sequential},
		{name: "random", order: random},
	} {
		run := func() {
			for _, i := range walk.order {
				sink += data[i]
			}
		}

		l, err := loads.Measure(run)
		if err != nil {
			panic(err)
		}
		m, err := misses.Measure(run)
		if err != nil {
			panic(err)
		}

		ratio := 0.0
		if l > 0 {
			ratio = float64(m) / float64(l) * 100
		}
		fmt.Printf("%-10s %s: %d, %s: %d (%.2f%%)\n", walk.name, loads.Event(), l, misses.Event(), m, ratio)
	}
}
