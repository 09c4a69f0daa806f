package goperf

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/dylandreimerink/goperf/perfsys"
	"github.com/dylandreimerink/goperf/perftypes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// openFunc has the signature of perfsys.PerfEventOpen
type openFunc func(attr perfsys.Attr, pid, cpu int, groupFD perfsys.FD, flags perfsys.OpenFlags) (perfsys.FD, error)

// Counter counts a single event for every OS thread it is read from. The kernel counter for a thread is opened
// the first time the counter is read on that thread, so a counter only starts counting for a thread after its
// first Read.
//
// A goroutine can be moved to another OS thread at any time, use Measure or runtime.LockOSThread to make sure
// consecutive reads are done on the same thread.
type Counter struct {
	event  perftypes.Event
	attr   perfsys.Attr
	logger *zap.SugaredLogger
	open   openFunc
	gettid func() int

	mu sync.Mutex
	// File descriptors for each OS thread, initially empty
	fds map[int]perfsys.FD
}

// CounterOption changes the default behavior of a Counter
type CounterOption func(*Counter)

// WithLogger makes the counter log the opening and closing of kernel counters to the given logger.
func WithLogger(logger *zap.SugaredLogger) CounterOption {
	return func(c *Counter) {
		c.logger = logger
	}
}

// NewCounter creates a counter for the given event. The attribute options are validated once, errors of the
// kernel are only returned by the first Read on a thread.
func NewCounter(ev perftypes.Event, attrOpts perfsys.AttrOpts, opts ...CounterOption) (*Counter, error) {
	attr, err := perfsys.NewEventAttr(ev, attrOpts)
	if err != nil {
		return nil, fmt.Errorf("encode attribute: %w", err)
	}

	c := &Counter{
		event:  ev,
		attr:   attr,
		logger: zap.NewNop().Sugar(),
		open:   perfsys.PerfEventOpen,
		gettid: unix.Gettid,
		fds:    make(map[int]perfsys.FD),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewNamedCounter creates a counter for an event name as accepted by perftypes.ParseEvent, the exclude flags
// of the modifiers are added to the attribute flags. If the name isn't a known event but has the form
// "category:name", it is looked up as tracepoint.
func NewNamedCounter(name string, attrOpts perfsys.AttrOpts, opts ...CounterOption) (*Counter, error) {
	ev, flags, err := perftypes.ParseEvent(name)
	if err != nil {
		category, tpName, ok := strings.Cut(name, ":")
		if !ok {
			return nil, err
		}

		tp, tpErr := TracepointEvent(category, tpName)
		if tpErr != nil {
			return nil, fmt.Errorf("%w, also not a tracepoint: %w", err, tpErr)
		}
		ev = tp
	}

	attrOpts.Flags = perftypes.CombineFlags(attrOpts.Flags, flags)
	return NewCounter(ev, attrOpts, opts...)
}

// NewCPUCyclesCounter returns a new counter for counting CPU cycles
//
// user specifies whether to count cycles spent in user-space and kernel whether to count cycles spent in
// kernel-space. Cycles spent in the hypervisor or while idle are never counted.
func NewCPUCyclesCounter(user, kernel bool, opts ...CounterOption) (*Counter, error) {
	return newHWCounter(perftypes.PERF_COUNT_HW_CPU_CYCLES, user, kernel, opts)
}

// NewInstructionsCounter returns a new counter for counting retired instructions
//
// user specifies whether to count instructions executed in user-space and kernel whether to count instructions
// executed in kernel-space. Instructions executed by the hypervisor are never counted.
func NewInstructionsCounter(user, kernel bool, opts ...CounterOption) (*Counter, error) {
	return newHWCounter(perftypes.PERF_COUNT_HW_INSTRUCTIONS, user, kernel, opts)
}

func newHWCounter(ev perftypes.HardwareEvent, user, kernel bool, opts []CounterOption) (*Counter, error) {
	flags := perftypes.CombineFlags(perftypes.AttrFlagsExcludeHV, perftypes.AttrFlagsExcludeIdle)
	if !user {
		flags |= perftypes.AttrFlagsExcludeUser
	}
	if !kernel {
		flags |= perftypes.AttrFlagsExcludeKernel
	}

	return NewCounter(ev, perfsys.AttrOpts{Flags: flags}, opts...)
}

// Event returns the event which is counted
func (c *Counter) Event() perftypes.Event {
	return c.event
}

// Attr returns a copy of the attribute used to open the kernel counters
func (c *Counter) Attr() perfsys.Attr {
	return c.attr
}

// Read reads the current value of the counter of the calling OS thread, opening it if this is the first read on
// the thread.
func (c *Counter) Read() (uint64, error) {
	fd, err := c.threadFD()
	if err != nil {
		return 0, err
	}

	count, err := fd.ReadCount()
	if err != nil {
		return 0, fmt.Errorf("read %s counter: %w", c.event, err)
	}

	return count, nil
}

func (c *Counter) threadFD() (perfsys.FD, error) {
	tid := c.gettid()

	c.mu.Lock()
	defer c.mu.Unlock()

	if fd, found := c.fds[tid]; found {
		return fd, nil
	}

	fd, err := c.open(c.attr, tid, perfsys.AnyCPU, perfsys.NoGroup, perfsys.OpenFlagFDCloseOnExec)
	if err != nil {
		return -1, fmt.Errorf("open %s counter for thread %d: %w", c.event, tid, err)
	}

	c.fds[tid] = fd
	c.logger.Debugw("opened perf counter", "event", c.event.String(), "tid", tid, "fd", int(fd))

	return fd, nil
}

// Measure returns the amount of events counted while executing f. The goroutine is locked to its OS thread for
// the duration of the call.
func (c *Counter) Measure(f func()) (uint64, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	before, err := c.Read()
	if err != nil {
		return 0, err
	}

	f()

	after, err := c.Read()
	if err != nil {
		return 0, err
	}

	return after - before, nil
}

// Total returns the sum of the counters of all threads on which the counter has been read.
func (c *Counter) Total(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	group, ctx := errgroup.WithContext(ctx)

	counts := make([]uint64, len(c.fds))
	i := 0
	for tid, fd := range c.fds {
		tid, fd, idx := tid, fd, i
		i++

		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			count, err := fd.ReadCount()
			if err != nil {
				return fmt.Errorf("read %s counter of thread %d: %w", c.event, tid, err)
			}

			counts[idx] = count
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return 0, err
	}

	var total uint64
	for _, count := range counts {
		total += count
	}

	return total, nil
}

// Threads returns the amount of OS threads for which a kernel counter is open
func (c *Counter) Threads() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.fds)
}

// Close closes the kernel counters of all threads. All counters are closed even if one fails, only the first
// error is returned. The counter can be read again after closing, which opens new kernel counters.
func (c *Counter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for tid, fd := range c.fds {
		closeErr := fd.Close()
		if closeErr != nil {
			c.logger.Warnw("failed to close perf counter", "event", c.event.String(), "tid", tid, "err", closeErr)

			// Report only the 1st error
			if err == nil {
				err = fmt.Errorf("close %s counter of thread %d: %w", c.event, tid, closeErr)
			}
			continue
		}

		c.logger.Debugw("closed perf counter", "event", c.event.String(), "tid", tid)
	}

	c.fds = make(map[int]perfsys.FD)

	return err
}
