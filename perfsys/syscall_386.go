// This file is only included on 386

//go:build linux && 386

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/x86/entry/syscalls/syscall_32.tbl
const SYS_PERF_EVENT_OPEN = 336
