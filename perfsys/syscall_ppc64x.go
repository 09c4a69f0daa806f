// This file is only included on ppc64 and ppc64le

//go:build linux && (ppc64 || ppc64le)

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/arch/powerpc/kernel/syscalls/syscall.tbl
const SYS_PERF_EVENT_OPEN = 319
