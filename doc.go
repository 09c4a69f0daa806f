// Package goperf counts hardware and software events of the current process with the linux perf_event_open
// syscall.
//
// A Counter counts one event per OS thread:
//
//	counter, err := goperf.NewInstructionsCounter(true, false)
//	if err != nil {
//		panic(err)
//	}
//	defer counter.Close()
//
//	instructions, err := counter.Measure(func() {
//		doWork()
//	})
//
// The event vocabulary lives in the perftypes package and the perf_event_attr record and syscall in the perfsys
// package.
package goperf
