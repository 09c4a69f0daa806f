// This file is only included on s390x

//go:build linux && s390x

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/s390/kernel/syscalls/syscall.tbl
const SYS_PERF_EVENT_OPEN = 331
