// Package perfsys contains the perf_event_attr record and low level functions related to the perf_event_open
// syscall. It is seperated out into this package so the docs of the goperf package aren't cluttered.
// It is recommended to use the Counter in goperf if at all possible, this package is available for anyone who
// wants to build attributes by hand or open counters for other threads or CPUs.
//
// The Attr record only contains the fields up to and including bp_len, which is PERF_ATTR_SIZE_VER1. All kernels
// since 2.6.33 accept this size.
package perfsys
