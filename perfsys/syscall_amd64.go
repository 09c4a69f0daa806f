// This file is only included on amd64

//go:build linux && amd64

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/x86/entry/syscalls/syscall_64.tbl
const SYS_PERF_EVENT_OPEN = 298
