// This file is only included on mips64 and mips64le

//go:build linux && (mips64 || mips64le)

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/mips/kernel/syscalls/syscall_n64.tbl
const SYS_PERF_EVENT_OPEN = 5292
