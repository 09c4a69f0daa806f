package main

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dylandreimerink/goperf"
	"go.uber.org/zap"
)

// This example counts the user-space instructions and CPU cycles of a few goroutines which each calculate a
// fibonacci number. Every goroutine is locked to its own OS thread while measuring, the totals are the sum over
// all threads on which the counters were read.

func fib(n int) int {
	if n < 2 {
		return n
	}
	return fib(n-1) + fib(n-2)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	instructions, err := goperf.NewInstructionsCounter(true, false, goperf.WithLogger(logger.Sugar()))
	if err != nil {
		panic(err)
	}
	defer instructions.Close()

	cycles, err := goperf.NewCPUCyclesCounter(true, false, goperf.WithLogger(logger.Sugar()))
	if err != nil {
		panic(err)
	}
	defer cycles.Close()

	var wg sync.WaitGroup
	for i := 20; i < 28; i += 2 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			var result int
			insns, err := instructions.Measure(func() {
				result = fib(n)
			})
			if err != nil {
				panic(err)
			}

			fmt.Printf("fib(%d) = %d took %d instructions\n", n, result, insns)
		}(i)
	}
	wg.Wait()

	// Measure the cycles of a single call on this goroutine
	cyc, err := cycles.Measure(func() {
		fib(25)
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("fib(25) took %d cycles\n", cyc)

	total, err := instructions.Total(context.Background())
	if err != nil {
		panic(err)
	}
	fmt.Printf("%d instructions over %d threads\n", total, instructions.Threads())
}
