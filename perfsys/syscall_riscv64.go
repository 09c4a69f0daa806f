// This file is only included on riscv64

//go:build linux && riscv64

package perfsys

// SYS_PERF_EVENT_OPEN perf_event_open syscall number https://github.com/torvalds/linux/blob/master/include/uapi/asm-generic/unistd.h
const SYS_PERF_EVENT_OPEN = 241
