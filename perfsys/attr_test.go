package perfsys

import (
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"

	"github.com/dylandreimerink/goperf/perftypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttrLayout(t *testing.T) {
	var a Attr
	assert.EqualValues(t, AttrSize, unsafe.Sizeof(a))
	assert.EqualValues(t, AttrSize, binary.Size(a))

	offsets := []struct {
		field  string
		offset uintptr
		want   uintptr
	}{
		{"type", unsafe.Offsetof(a.Type), 0},
		{"size", unsafe.Offsetof(a.Size), 4},
		{"config", unsafe.Offsetof(a.Config), 8},
		{"sample_period", unsafe.Offsetof(a.SamplePeriodFreq), 16},
		{"sample_type", unsafe.Offsetof(a.SampleType), 24},
		{"read_format", unsafe.Offsetof(a.ReadFormat), 32},
		{"flags", unsafe.Offsetof(a.Flags), 40},
		{"wakeup_events", unsafe.Offsetof(a.WakeupEventsWatermark), 48},
		{"bp_type", unsafe.Offsetof(a.BPType), 52},
		{"bp_addr", unsafe.Offsetof(a.BPAddr), 56},
		{"bp_len", unsafe.Offsetof(a.BPLen), 64},
	}
	for _, o := range offsets {
		assert.Equalf(t, o.want, o.offset, "offset of %s", o.field)
	}
}

func TestNewAttrSizeAlwaysSet(t *testing.T) {
	opts := []AttrOpts{
		{},
		{Flags: perftypes.AttrFlagsDisabled | perftypes.AttrFlagsFreq, SamplePeriodFreq: 4000},
		{SampleFormat: perftypes.PERF_SAMPLE_IP, ReadFormat: perftypes.PERF_FORMAT_ID, WakeupEventsWatermark: 1},
		{Breakpoint: &perftypes.BreakpointEvent{Access: perftypes.HW_BREAKPOINT_X, Addr: 1, Len: 8}},
	}

	for _, typ := range []perftypes.Type{perftypes.PERF_TYPE_HARDWARE, perftypes.PERF_TYPE_SOFTWARE, perftypes.PERF_TYPE_HW_CACHE} {
		for _, ev := range perftypes.Events(typ) {
			for _, o := range opts {
				attr, err := NewEventAttr(ev, o)
				require.NoError(t, err)
				assert.EqualValues(t, AttrSize, attr.Size)
			}
		}
	}
}

func TestNewAttrScenarios(t *testing.T) {
	t.Run("disabled task clock", func(t *testing.T) {
		attr, err := NewAttr(perftypes.PERF_TYPE_SOFTWARE, uint64(perftypes.PERF_COUNT_SW_TASK_CLOCK), AttrOpts{
			Flags: perftypes.AttrFlagsDisabled,
		})
		require.NoError(t, err)
		assert.Equal(t, Attr{
			Type:   perftypes.PERF_TYPE_SOFTWARE,
			Size:   72,
			Config: 1,
			Flags:  1,
		}, attr)
	})

	t.Run("L1D read miss", func(t *testing.T) {
		ev := perftypes.CacheEvent{
			Cache:  perftypes.PERF_COUNT_HW_CACHE_L1D,
			Op:     perftypes.PERF_COUNT_HW_CACHE_OP_READ,
			Result: perftypes.PERF_COUNT_HW_CACHE_RESULT_MISS,
		}
		attr, err := NewEventAttr(ev, AttrOpts{})
		require.NoError(t, err)
		assert.Equal(t, perftypes.PERF_TYPE_HW_CACHE, attr.Type)
		assert.Equal(t, uint64(0|0<<8|1<<16), attr.Config)
	})

	t.Run("software only code for hardware", func(t *testing.T) {
		_, err := NewAttr(perftypes.PERF_TYPE_HARDWARE, uint64(perftypes.PERF_COUNT_SW_EMULATION_FAULTS), AttrOpts{})
		assert.ErrorIs(t, err, perftypes.ErrInvalidEventForType)
	})

	t.Run("out of range cache tier", func(t *testing.T) {
		ev := perftypes.CacheEvent{
			Cache:  perftypes.PERF_COUNT_HW_CACHE_BPU + 1,
			Op:     perftypes.PERF_COUNT_HW_CACHE_OP_READ,
			Result: perftypes.PERF_COUNT_HW_CACHE_RESULT_MISS,
		}
		_, err := NewEventAttr(ev, AttrOpts{})
		assert.ErrorIs(t, err, perftypes.ErrInvalidCachePacking)

		_, err = NewAttr(perftypes.PERF_TYPE_HW_CACHE, 6|1<<16, AttrOpts{})
		assert.ErrorIs(t, err, perftypes.ErrInvalidCachePacking)
	})
}

func TestNewEventAttrErrors(t *testing.T) {
	_, err := NewEventAttr(nil, AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidEventForType)

	// A tier of 0x100 would alias to op 1 once packed
	_, err = NewEventAttr(perftypes.CacheEvent{Cache: 0x100}, AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidCachePacking)

	_, err = NewEventAttr(perftypes.HardwareEvent(100), AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrInvalidEventForType)

	_, err = NewAttr(perftypes.Type(42), 0, AttrOpts{})
	assert.ErrorIs(t, err, perftypes.ErrUnknownType)
}

func TestNewEventAttrBreakpoint(t *testing.T) {
	bp := perftypes.BreakpointEvent{Access: perftypes.HW_BREAKPOINT_W, Addr: 0x1000, Len: perftypes.HW_BREAKPOINT_LEN_8}
	attr, err := NewEventAttr(bp, AttrOpts{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, perftypes.PERF_TYPE_BREAKPOINT, attr.Type)
	assert.Equal(t, perftypes.HW_BREAKPOINT_W, attr.BPType)
	assert.Equal(t, uint64(0x1000), attr.BPAddr)
	assert.Equal(t, perftypes.HW_BREAKPOINT_LEN_8, attr.BPLen)
	assert.Zero(t, attr.Config)

	ev, err := attr.Event()
	require.NoError(t, err)
	assert.Equal(t, bp, ev)
}

func TestStrictMode(t *testing.T) {
	sw := perftypes.PERF_TYPE_SOFTWARE
	cpuClock := uint64(perftypes.PERF_COUNT_SW_CPU_CLOCK)
	bp := &perftypes.BreakpointEvent{Access: perftypes.HW_BREAKPOINT_RW, Addr: 0x1000, Len: 4}

	tests := []struct {
		name   string
		typ    perftypes.Type
		config uint64
		opts   AttrOpts
		err    error
	}{
		{
			name:   "freq without frequency",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{Flags: perftypes.AttrFlagsFreq},
			err:    ErrInconsistentFlags,
		},
		{
			name:   "watermark without watermark",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{Flags: perftypes.AttrFlagsWatermark},
			err:    ErrInconsistentFlags,
		},
		{
			name:   "breakpoint on software counter",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{Breakpoint: bp},
			err:    ErrUnexpectedBreakpoint,
		},
		{
			name: "breakpoint counter without breakpoint",
			typ:  perftypes.PERF_TYPE_BREAKPOINT,
			opts: AttrOpts{},
			err:  ErrUnexpectedBreakpoint,
		},
		{
			name: "breakpoint with bad length",
			typ:  perftypes.PERF_TYPE_BREAKPOINT,
			opts: AttrOpts{Breakpoint: &perftypes.BreakpointEvent{Access: perftypes.HW_BREAKPOINT_R, Len: 3}},
			err:  ErrUnexpectedBreakpoint,
		},
		{
			name:   "unknown sample bits",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{SampleFormat: 1 << 40},
			err:    ErrUnknownFormatBits,
		},
		{
			name:   "unknown read format bits",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{ReadFormat: 1 << 10},
			err:    ErrUnknownFormatBits,
		},
		{
			name:   "consistent frequency",
			typ:    sw,
			config: cpuClock,
			opts:   AttrOpts{Flags: perftypes.AttrFlagsFreq, SamplePeriodFreq: 99},
		},
		{
			name: "valid breakpoint",
			typ:  perftypes.PERF_TYPE_BREAKPOINT,
			opts: AttrOpts{Breakpoint: bp},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Without strict mode every combination is accepted
			lax, err := NewAttr(tt.typ, tt.config, tt.opts)
			require.NoError(t, err)

			tt.opts.Strict = true
			strict, err := NewAttr(tt.typ, tt.config, tt.opts)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, lax, strict)
		})
	}
}

func TestAttrMarshalBinary(t *testing.T) {
	attr, err := NewAttr(perftypes.PERF_TYPE_HARDWARE, uint64(perftypes.PERF_COUNT_HW_INSTRUCTIONS), AttrOpts{
		Flags:                 perftypes.CombineFlags(perftypes.AttrFlagsDisabled, perftypes.AttrFlagsExcludeKernel),
		SamplePeriodFreq:      1000,
		ReadFormat:            perftypes.PERF_FORMAT_TOTAL_TIME_ENABLED,
		WakeupEventsWatermark: 3,
	})
	require.NoError(t, err)

	data, err := attr.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, AttrSize)

	assert.Equal(t, uint32(perftypes.PERF_TYPE_HARDWARE), binary.NativeEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(AttrSize), binary.NativeEndian.Uint32(data[4:]))
	assert.Equal(t, uint64(1), binary.NativeEndian.Uint64(data[8:]))
	assert.Equal(t, uint64(1000), binary.NativeEndian.Uint64(data[16:]))
	assert.Equal(t, uint64(1), binary.NativeEndian.Uint64(data[32:]))
	assert.Equal(t, uint64(1|1<<5), binary.NativeEndian.Uint64(data[40:]))
	assert.Equal(t, uint32(3), binary.NativeEndian.Uint32(data[48:]))

	// The encoding must match the in-memory layout handed to the kernel
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&attr)), AttrSize)
	assert.Equal(t, mem, data)

	var decoded Attr
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, attr, decoded)
}

func TestAttrUnmarshalBinaryErrors(t *testing.T) {
	var attr Attr
	err := attr.UnmarshalBinary(make([]byte, 64))
	assert.True(t, errors.Is(err, ErrInvalidAttrSize))

	// Correct length but the size field is zero
	err = attr.UnmarshalBinary(make([]byte, AttrSize))
	assert.True(t, errors.Is(err, ErrInvalidAttrSize))
}

func TestAttrEvent(t *testing.T) {
	for _, typ := range []perftypes.Type{perftypes.PERF_TYPE_HARDWARE, perftypes.PERF_TYPE_SOFTWARE, perftypes.PERF_TYPE_HW_CACHE} {
		for _, want := range perftypes.Events(typ) {
			attr, err := NewEventAttr(want, AttrOpts{})
			require.NoError(t, err)

			got, err := attr.Event()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}

	_, err := Attr{Type: perftypes.PERF_TYPE_HW_CACHE, Size: AttrSize, Config: 1 << 30}.Event()
	assert.ErrorIs(t, err, perftypes.ErrInvalidCachePacking)
}

func TestAttrString(t *testing.T) {
	attr, err := NewEventAttr(perftypes.PERF_COUNT_SW_PAGE_FAULTS, AttrOpts{Flags: perftypes.AttrFlagsDisabled})
	require.NoError(t, err)
	assert.Contains(t, attr.String(), "type: software")
	assert.Contains(t, attr.String(), "flags: disabled")
}
