package perfsys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/dylandreimerink/goperf/internal/syscall"
	"github.com/dylandreimerink/goperf/kernelsupport"
	"github.com/dylandreimerink/goperf/perftypes"
)

// ErrNotSupported is returned when attempting to use a feature that is not supported
// by the kernel version on which the program is executed.
var ErrNotSupported = errors.New("feature not supported by kernel version")

// SyscallError is returned when the kernel rejects a syscall. It contains the errno and, if known, an explanation
// of the errno for the specific syscall.
type SyscallError = syscall.Error

// FD is a file descriptor of a perf event counter.
type FD int

// NoGroup can be passed as group FD to create a counter which is the leader of its own group
const NoGroup FD = -1

const (
	// CallingProcess measures the calling process/thread when used as pid
	CallingProcess = 0
	// AnyProcess measures all processes and threads when used as pid, the cpu must be specified
	AnyProcess = -1
	// AnyCPU measures the process/thread on any CPU when used as cpu, the pid must be specified
	AnyCPU = -1
)

// OpenFlags are the flags argument of perf_event_open.
type OpenFlags uintptr

const (
	// OpenFlagFDNoGroup This flag tells the event to ignore the group_fd parameter except for the purpose of
	// setting up output redirection using the PERF_FLAG_FD_OUTPUT flag.
	OpenFlagFDNoGroup OpenFlags = 1 << iota

	// OpenFlagFDOutput This flag re-routes the event's sampled output to instead be included in the mmap
	// buffer of the event specified by group_fd.
	OpenFlagFDOutput

	// OpenFlagPIDCgroup This flag activates per-container system-wide monitoring, the pid argument is a file
	// descriptor of a cgroup directory.
	OpenFlagPIDCgroup

	// OpenFlagFDCloseOnExec This flag enables the close-on-exec flag for the created event file descriptor,
	// so that the file descriptor is automatically closed on execve(2). Setting the close-on-exec flags at
	// creation time, rather than later with fcntl(2), avoids potential race conditions where the calling
	// thread invokes perf_event_open() and fcntl(2) at the same time as another thread calls fork(2) then
	// execve(2).
	OpenFlagFDCloseOnExec
)

// PerfEventOpen is a wrapper around the perf_event_open syscall. The size of the attribute is always set to
// AttrSize. Features which the current kernel doesn't know about are refused with ErrNotSupported instead of
// being passed to the kernel.
func PerfEventOpen(attr Attr, pid, cpu int, groupFD FD, flags OpenFlags) (FD, error) {
	if err := checkKernelSupport(kernelsupport.CurrentFeatures, attr, flags); err != nil {
		return -1, err
	}

	attr.Size = AttrSize

	fd, err := syscall.PerfEventOpen(
		SYS_PERF_EVENT_OPEN,
		unsafe.Pointer(&attr),
		pid,
		cpu,
		int(groupFD),
		uintptr(flags),
	)
	if err != nil {
		return -1, err
	}

	return FD(fd), nil
}

func checkKernelSupport(features kernelsupport.KernelFeatures, attr Attr, flags OpenFlags) error {
	// If the user attempts to use a unsupported feature, tell them to avoid unexpected behavior
	if !features.Perf.Has(kernelsupport.KFeatPerfEventOpen) {
		return fmt.Errorf("perf_event_open: %w", ErrNotSupported)
	}

	if attr.Type == perftypes.PERF_TYPE_BREAKPOINT && !features.Perf.Has(kernelsupport.KFeatPerfTypeBreakpoint) {
		return fmt.Errorf("breakpoint counters: %w", ErrNotSupported)
	}

	if attr.Type == perftypes.PERF_TYPE_SOFTWARE &&
		attr.Config >= uint64(perftypes.PERF_COUNT_SW_ALIGNMENT_FAULTS) &&
		!features.Perf.Has(kernelsupport.KFeatPerfSWFaultsExt) {
		return fmt.Errorf("software event '%s': %w", perftypes.SoftwareEvent(attr.Config), ErrNotSupported)
	}

	if attr.Flags >= perftypes.AttrFlagsPreciseIPConstantSkid && !features.Perf.Has(kernelsupport.KFeatPerfAttrFlagsExt) {
		return fmt.Errorf("attribute flags '%s': %w", attr.Flags, ErrNotSupported)
	}

	if flags&OpenFlagFDCloseOnExec != 0 && !features.Perf.Has(kernelsupport.KFeatPerfFlagFDCloexec) {
		return fmt.Errorf("close-on-exec open flag: %w", ErrNotSupported)
	}

	return nil
}

// ReadCount reads the current value of a counter which was opened without read format.
func (fd FD) ReadCount() (uint64, error) {
	var buf [8]byte
	n, err := syscall.Read(int(fd), buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("read %d of %d bytes: %w", n, len(buf), io.ErrUnexpectedEOF)
	}

	return binary.NativeEndian.Uint64(buf[:]), nil
}

// Close closes a file descriptor
func (fd FD) Close() error {
	return syscall.Close(int(fd))
}
