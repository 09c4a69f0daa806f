// Package perftypes contains the closed vocabulary the kernel understands when describing a perf counter: the
// counter types, the generalized hardware, software and cache events, the sample and read format bits and the
// attribute flags. It contains no I/O, every table in this package is constant and safe for concurrent use.
//
// The integer values in this package are dictated by include/uapi/linux/perf_event.h and must never be changed.
package perftypes
