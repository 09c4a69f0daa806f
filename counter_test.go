package goperf

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/dylandreimerink/goperf/perfsys"
	"github.com/dylandreimerink/goperf/perftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sys/unix"
)

type openCall struct {
	attr    perfsys.Attr
	pid     int
	cpu     int
	groupFD perfsys.FD
	flags   perfsys.OpenFlags
}

// fakeKernel opens pipes instead of perf counters, every read of a pipe returns the next value for the thread
type fakeKernel struct {
	values map[int][]uint64
	err    error
	calls  []openCall
}

func (k *fakeKernel) open(attr perfsys.Attr, pid, cpu int, groupFD perfsys.FD, flags perfsys.OpenFlags) (perfsys.FD, error) {
	k.calls = append(k.calls, openCall{attr: attr, pid: pid, cpu: cpu, groupFD: groupFD, flags: flags})
	if k.err != nil {
		return -1, k.err
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, err
	}

	buf := make([]byte, 8)
	for _, v := range k.values[pid] {
		binary.NativeEndian.PutUint64(buf, v)
		if _, err := unix.Write(fds[1], buf); err != nil {
			return -1, err
		}
	}

	return perfsys.FD(fds[0]), unix.Close(fds[1])
}

func withOpener(open openFunc) CounterOption {
	return func(c *Counter) {
		c.open = open
	}
}

func withTID(tid *int) CounterOption {
	return func(c *Counter) {
		c.gettid = func() int { return *tid }
	}
}

func newTestCounter(t *testing.T, k *fakeKernel, tid *int, opts ...CounterOption) *Counter {
	t.Helper()

	opts = append(opts, withOpener(k.open), withTID(tid))
	c, err := NewCounter(perftypes.PERF_COUNT_SW_TASK_CLOCK, perfsys.AttrOpts{}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func TestCounterReadOpensOncePerThread(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{
		1: {10, 20},
		2: {7},
	}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	count, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(10), count)

	count, err = c.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(20), count)
	assert.Len(t, k.calls, 1)

	tid = 2
	count, err = c.Read()
	require.NoError(t, err)
	assert.Equal(t, uint64(7), count)

	require.Len(t, k.calls, 2)
	assert.Equal(t, 2, c.Threads())

	call := k.calls[1]
	assert.Equal(t, 2, call.pid)
	assert.Equal(t, perfsys.AnyCPU, call.cpu)
	assert.Equal(t, perfsys.NoGroup, call.groupFD)
	assert.Equal(t, perfsys.OpenFlagFDCloseOnExec, call.flags)
	assert.Equal(t, c.Attr(), call.attr)
	assert.EqualValues(t, perfsys.AttrSize, call.attr.Size)
}

func TestCounterOpenError(t *testing.T) {
	k := &fakeKernel{err: perfsys.ErrNotSupported}
	tid := 1
	c := newTestCounter(t, k, &tid)

	_, err := c.Read()
	assert.ErrorIs(t, err, perfsys.ErrNotSupported)
	assert.Equal(t, 0, c.Threads())

	// The open is retried on the next read
	_, err = c.Read()
	assert.Error(t, err)
	assert.Len(t, k.calls, 2)
}

func TestCounterMeasure(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{1: {100, 350}}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	called := false
	delta, err := c.Measure(func() {
		called = true
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, uint64(250), delta)
}

func TestCounterTotal(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{
		1: {10, 15},
		2: {20, 27},
		3: {0, 0},
	}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	for _, tid = range []int{1, 2, 3} {
		_, err := c.Read()
		require.NoError(t, err)
	}

	total, err := c.Total(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), total)

	// All values have been consumed, the pipes return EOF
	_, err = c.Total(context.Background())
	assert.Error(t, err)
}

func TestCounterTotalCanceled(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{1: {1, 2}}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	_, err := c.Read()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Total(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCounterTotalNoThreads(t *testing.T) {
	tid := 1
	c := newTestCounter(t, &fakeKernel{}, &tid)

	total, err := c.Total(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCounterClose(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{1: {1, 2}, 2: {3}}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	_, err := c.Read()
	require.NoError(t, err)
	tid = 2
	_, err = c.Read()
	require.NoError(t, err)

	fds := make([]perfsys.FD, 0, 2)
	for _, fd := range c.fds {
		fds = append(fds, fd)
	}

	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Threads())

	for _, fd := range fds {
		_, err := fd.ReadCount()
		assert.ErrorIs(t, err, unix.EBADF)
	}

	// Closing again is a no-op
	assert.NoError(t, c.Close())

	// Reading after close opens a new counter
	tid = 1
	_, err = c.Read()
	require.NoError(t, err)
	assert.Len(t, k.calls, 3)
}

func TestCounterCloseReturnsFirstError(t *testing.T) {
	k := &fakeKernel{values: map[int][]uint64{1: {1}}}
	tid := 1
	c := newTestCounter(t, k, &tid)

	_, err := c.Read()
	require.NoError(t, err)

	// An fd number far above any open descriptor
	c.fds[2] = perfsys.FD(1 << 20)

	err = c.Close()
	var sysErr *perfsys.SyscallError
	require.True(t, errors.As(err, &sysErr))
	assert.Equal(t, unix.EBADF, sysErr.Errno)

	// The valid descriptor has been closed regardless
	assert.Equal(t, 0, c.Threads())
}

func TestCounterLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	k := &fakeKernel{values: map[int][]uint64{5: {1}}}
	tid := 5
	c := newTestCounter(t, k, &tid, WithLogger(zap.New(core).Sugar()))

	_, err := c.Read()
	require.NoError(t, err)
	require.NoError(t, c.Close())

	opened := logs.FilterMessage("opened perf counter").All()
	require.Len(t, opened, 1)
	assert.Equal(t, "task-clock", opened[0].ContextMap()["event"])
	assert.EqualValues(t, 5, opened[0].ContextMap()["tid"])

	assert.Equal(t, 1, logs.FilterMessage("closed perf counter").Len())
}

func TestHWCounterConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func(user, kernel bool, opts ...CounterOption) (*Counter, error)
		user   bool
		kernel bool
		event  perftypes.Event
		flags  perftypes.AttrFlags
	}{
		{
			name:  "cycles user only",
			newFn: NewCPUCyclesCounter,
			user:  true,
			event: perftypes.PERF_COUNT_HW_CPU_CYCLES,
			flags: perftypes.AttrFlagsExcludeHV | perftypes.AttrFlagsExcludeIdle | perftypes.AttrFlagsExcludeKernel,
		},
		{
			name:   "instructions kernel only",
			newFn:  NewInstructionsCounter,
			kernel: true,
			event:  perftypes.PERF_COUNT_HW_INSTRUCTIONS,
			flags:  perftypes.AttrFlagsExcludeHV | perftypes.AttrFlagsExcludeIdle | perftypes.AttrFlagsExcludeUser,
		},
		{
			name:   "instructions everywhere",
			newFn:  NewInstructionsCounter,
			user:   true,
			kernel: true,
			event:  perftypes.PERF_COUNT_HW_INSTRUCTIONS,
			flags:  perftypes.AttrFlagsExcludeHV | perftypes.AttrFlagsExcludeIdle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.newFn(tt.user, tt.kernel)
			require.NoError(t, err)

			assert.Equal(t, tt.event, c.Event())
			assert.Equal(t, perftypes.PERF_TYPE_HARDWARE, c.Attr().Type)
			assert.Equal(t, tt.event.Config(), c.Attr().Config)
			assert.Equal(t, tt.flags, c.Attr().Flags)
		})
	}
}

func TestNewNamedCounter(t *testing.T) {
	c, err := NewNamedCounter("cache-misses:u", perfsys.AttrOpts{Flags: perftypes.AttrFlagsDisabled})
	require.NoError(t, err)
	assert.Equal(t, perftypes.PERF_COUNT_HW_CACHE_MISSES, c.Event())
	assert.Equal(t,
		perftypes.AttrFlagsDisabled|perftypes.AttrFlagsExcludeKernel|perftypes.AttrFlagsExcludeHV,
		c.Attr().Flags,
	)

	c, err = NewNamedCounter("L1-dcache-load-misses", perfsys.AttrOpts{})
	require.NoError(t, err)
	assert.Equal(t, perftypes.PERF_TYPE_HW_CACHE, c.Attr().Type)
	assert.Equal(t, uint64(1<<16), c.Attr().Config)

	_, err = NewNamedCounter("no-such-event", perfsys.AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidEventName)

	_, err = NewNamedCounter("no_such_category:no_such_tracepoint", perfsys.AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidEventName)
}

func TestNewCounterInvalidEvent(t *testing.T) {
	_, err := NewCounter(perftypes.SoftwareEvent(42), perfsys.AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidEventForType)
}
