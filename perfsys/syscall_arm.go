// This file is only included on arm

//go:build linux && arm

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/arm/tools/syscall.tbl
const SYS_PERF_EVENT_OPEN = 364
