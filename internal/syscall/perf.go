package syscall

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// PerfEventOpen is a wrapper around the perf_event_open syscall. The syscall number is passed in by the caller since
// it is architecture specific, attr must point to a perf_event_attr of which the size field is set.
func PerfEventOpen(sysno uintptr, attr unsafe.Pointer, pid, cpu, groupFD int, flags uintptr) (int, error) {
	fd, _, errno := unix.Syscall6(
		sysno,
		uintptr(attr),
		uintptr(pid),
		uintptr(cpu),
		uintptr(groupFD),
		flags,
		0,
	)
	if errno != 0 {
		return -1, newError(errno, perfEventOpenErrors)
	}

	return int(fd), nil
}

// Read reads from a perf event file descriptor.
func Read(fd int, buf []byte) (int, error) {
	n, err := unix.Read(fd, buf)
	if err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return n, newError(errno, readErrors)
		}
		return n, err
	}

	return n, nil
}

// Close closes a file descriptor
func Close(fd int) error {
	_, _, errno := unix.Syscall(unix.SYS_CLOSE, uintptr(fd), 0, 0)
	if errno != 0 {
		return newError(errno, closeErrors)
	}

	return nil
}

var closeErrors = map[unix.Errno]string{
	unix.EBADF: "fd isn't a valid open file descriptor",
	unix.EINTR: "The Close() call was interrupted by a signal; see signal(7)",
	unix.EIO:   "An I/O error occurred",
}

var readErrors = map[unix.Errno]string{
	unix.EBADF:  "fd isn't a valid open file descriptor",
	unix.EINTR:  "The Read() call was interrupted by a signal before any data was read",
	unix.ENOSPC: "The read buffer is too small for the read_format of the counter",
}

var perfEventOpenErrors = map[unix.Errno]string{
	unix.E2BIG: "The perf_event_attr size is smaller than PERF_ATTR_SIZE_VER0, larger than the page size, " +
		"or larger than the kernel supports and the extra bytes are not zero. " +
		"The kernel overwrote the size field with the size it expected.",

	unix.EACCES: "The event requires CAP_PERFMON (since Linux 5.8) or CAP_SYS_ADMIN, or a more permissive " +
		"perf_event_paranoid setting. Common causes for unprivileged processes: attaching to a process owned " +
		"by a different user, monitoring all processes on a CPU (pid -1) or not setting exclude_kernel " +
		"when the paranoid setting requires it.",

	unix.EBADF: "The group_fd file descriptor is not valid, or PERF_FLAG_PID_CGROUP is set and the cgroup " +
		"file descriptor in pid is not valid.",

	unix.EBUSY: "Another event already has exclusive access to the PMU.",

	unix.EFAULT: "The attr pointer points at an invalid memory address.",

	unix.EINVAL: "The event is invalid. Possible reasons: sample_freq is higher than the maximum setting, " +
		"the cpu to monitor does not exist, read_format or sample_type is out of range, the flags value " +
		"is out of range, exclusive or pinned is set on an event which is not a group leader, the config " +
		"values are out of range or set reserved bits, the generic event is not supported or there is not " +
		"enough room to add the event.",

	unix.EINTR: "Returned when trying to mix perf and ftrace handling for a uprobe.",

	unix.EMFILE: "Each opened event uses one file descriptor, the per-process limit on the number of open " +
		"file descriptors has been reached.",

	unix.ENODEV: "The event involves a feature not supported by the current CPU.",

	unix.ENOENT: "The type setting is not valid, this is also returned for some unsupported generic events.",

	unix.ENOSPC: "There is no room for the event. Since Linux 3.3 this is only returned when adding more " +
		"breakpoint events than supported by the hardware.",

	unix.ENOSYS: "PERF_SAMPLE_STACK_USER is set in sample_type and it is not supported by hardware.",

	unix.EOPNOTSUPP: "The event requires a hardware feature which is not available, for example low-skid " +
		"events, branch tracing, sampling without a PMU interrupt or branch stacks for software events.",

	unix.EOVERFLOW: "PERF_SAMPLE_CALLCHAIN is requested and sample_max_stack is larger than " +
		"/proc/sys/kernel/perf_event_max_stack (since Linux 4.8).",

	unix.EPERM: "An unsupported exclude_hv, exclude_idle, exclude_user or exclude_kernel setting was " +
		"specified, or the event requires CAP_PERFMON or CAP_SYS_ADMIN. This includes breakpoints on " +
		"kernel addresses and kernel function-trace tracepoints.",

	unix.ESRCH: "The process to attach to does not exist.",
}
