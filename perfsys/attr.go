package perfsys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unsafe"

	"github.com/dylandreimerink/goperf/perftypes"
)

// AttrSize is the size of Attr in bytes, PERF_ATTR_SIZE_VER1 in the kernel headers.
const AttrSize = 72

// Attr fails to compile if its size differs from AttrSize in either direction
var (
	_ [AttrSize - unsafe.Sizeof(Attr{})]struct{}
	_ [unsafe.Sizeof(Attr{}) - AttrSize]struct{}
)

var (
	// ErrInconsistentFlags is returned in strict mode when a flag selects the interpretation of a field which
	// doesn't match the value
	ErrInconsistentFlags = errors.New("flags are inconsistent with attribute fields")
	// ErrUnexpectedBreakpoint is returned in strict mode when breakpoint fields are used by a non breakpoint
	// counter or are missing from a breakpoint counter
	ErrUnexpectedBreakpoint = errors.New("breakpoint fields don't match counter type")
	// ErrUnknownFormatBits is returned in strict mode when undefined sample or read format bits are set
	ErrUnknownFormatBits = errors.New("unknown format bits")
	// ErrInvalidAttrSize is returned when decoding a record which isn't exactly AttrSize bytes
	ErrInvalidAttrSize = errors.New("invalid perf_event_attr size")
)

// Attr is the go version of the first PERF_ATTR_SIZE_VER1 bytes of the perf_event_attr struct as defined by the
// kernel. The kernel unions are represented by a single field, the flags decide how the value is interpreted.
// https://elixir.bootlin.com/linux/v5.14.14/source/include/uapi/linux/perf_event.h#L338
type Attr struct {
	Type perftypes.Type
	// Size is always AttrSize, use NewAttr or NewEventAttr to create a correct record
	Size   uint32
	Config uint64
	// union of sample_period and sample_freq, AttrFlagsFreq selects the frequency
	SamplePeriodFreq uint64
	SampleType       perftypes.SampleFormat
	ReadFormat       perftypes.ReadFormat
	Flags            perftypes.AttrFlags
	// union of wakeup_events and wakeup_watermark, AttrFlagsWatermark selects the watermark
	WakeupEventsWatermark uint32
	BPType                perftypes.BreakpointType
	// union of bp_addr, kprobe_func, uprobe_path, and config1
	BPAddr uint64
	// union of bp_len, kprobe_addr, probe_offset, and config2
	BPLen perftypes.BreakpointLen
}

// AttrOpts contains all attribute fields except the type and config.
type AttrOpts struct {
	SampleFormat          perftypes.SampleFormat
	ReadFormat            perftypes.ReadFormat
	Flags                 perftypes.AttrFlags
	SamplePeriodFreq      uint64
	WakeupEventsWatermark uint32
	// Breakpoint fills the bp_type, bp_addr and bp_len fields
	Breakpoint *perftypes.BreakpointEvent

	// Strict enables validation of the options against each other, on top of the event validation which is
	// always done.
	Strict bool
}

// NewAttr creates a new attribute for a counter of type t and the given config value. The config must be legal
// for the counter type, otherwise a *perftypes.EventError is returned.
func NewAttr(t perftypes.Type, config uint64, opts AttrOpts) (Attr, error) {
	if err := perftypes.ValidateConfig(t, config); err != nil {
		return Attr{}, err
	}

	if opts.Strict {
		if err := opts.validate(t); err != nil {
			return Attr{}, err
		}
	}

	attr := Attr{
		Type:                  t,
		Size:                  AttrSize,
		Config:                config,
		SamplePeriodFreq:      opts.SamplePeriodFreq,
		SampleType:            opts.SampleFormat,
		ReadFormat:            opts.ReadFormat,
		Flags:                 opts.Flags,
		WakeupEventsWatermark: opts.WakeupEventsWatermark,
	}

	if opts.Breakpoint != nil {
		attr.BPType = opts.Breakpoint.Access
		attr.BPAddr = opts.Breakpoint.Addr
		attr.BPLen = opts.Breakpoint.Len
	}

	return attr, nil
}

// NewEventAttr creates a new attribute for the typed event. A BreakpointEvent takes the place of the breakpoint
// in the options.
func NewEventAttr(ev perftypes.Event, opts AttrOpts) (Attr, error) {
	if ev == nil {
		return Attr{}, fmt.Errorf("nil event: %w", perftypes.ErrInvalidEventForType)
	}

	if bp, ok := ev.(perftypes.BreakpointEvent); ok {
		opts.Breakpoint = &bp
	}

	// Checked on the typed event since an out of range cache component can overflow into the next one once packed
	if !perftypes.IsLegal(ev.Type(), ev) {
		evErr := &perftypes.EventError{
			Type:   ev.Type(),
			Config: ev.Config(),
			Err:    perftypes.ErrInvalidEventForType,
		}
		if _, ok := ev.(perftypes.CacheEvent); ok {
			evErr.Err = perftypes.ErrInvalidCachePacking
		}
		return Attr{}, evErr
	}

	return NewAttr(ev.Type(), ev.Config(), opts)
}

func (opts AttrOpts) validate(t perftypes.Type) error {
	if opts.Flags.Has(perftypes.AttrFlagsFreq) && opts.SamplePeriodFreq == 0 {
		return fmt.Errorf("%w: freq flag set without a sample frequency", ErrInconsistentFlags)
	}

	if opts.Flags.Has(perftypes.AttrFlagsWatermark) && opts.WakeupEventsWatermark == 0 {
		return fmt.Errorf("%w: watermark flag set without a wakeup watermark", ErrInconsistentFlags)
	}

	if t == perftypes.PERF_TYPE_BREAKPOINT {
		if opts.Breakpoint == nil {
			return fmt.Errorf("%w: breakpoint counter without breakpoint", ErrUnexpectedBreakpoint)
		}
		if !opts.Breakpoint.Access.Valid() {
			return fmt.Errorf("%w: invalid breakpoint type '%s'", ErrUnexpectedBreakpoint, opts.Breakpoint.Access)
		}
		if !opts.Breakpoint.Len.Valid() {
			return fmt.Errorf("%w: invalid breakpoint length %d", ErrUnexpectedBreakpoint, opts.Breakpoint.Len)
		}
	} else if opts.Breakpoint != nil {
		return fmt.Errorf("%w: breakpoint given for %s counter", ErrUnexpectedBreakpoint, t)
	}

	if !opts.SampleFormat.Known() {
		return fmt.Errorf("%w: sample format '%s'", ErrUnknownFormatBits, opts.SampleFormat)
	}

	if !opts.ReadFormat.Known() {
		return fmt.Errorf("%w: read format '%s'", ErrUnknownFormatBits, opts.ReadFormat)
	}

	return nil
}

// Event decodes the type and config of the attribute into a typed event.
func (a Attr) Event() (perftypes.Event, error) {
	ev, err := perftypes.EventFromConfig(a.Type, a.Config)
	if err != nil {
		return nil, err
	}

	if a.Type == perftypes.PERF_TYPE_BREAKPOINT {
		ev = perftypes.BreakpointEvent{
			Access: a.BPType,
			Addr:   a.BPAddr,
			Len:    a.BPLen,
		}
	}

	return ev, nil
}

// MarshalBinary encodes the attribute in the native byte order, the way the kernel expects it.
func (a Attr) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(AttrSize)
	if err := binary.Write(&buf, binary.NativeEndian, a); err != nil {
		return nil, fmt.Errorf("encode perf_event_attr: %w", err)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes an attribute in the native byte order. The data must be exactly AttrSize bytes and
// the size field must match.
func (a *Attr) UnmarshalBinary(data []byte) error {
	if len(data) != AttrSize {
		return fmt.Errorf("%w: got %d bytes, expected %d", ErrInvalidAttrSize, len(data), AttrSize)
	}

	var attr Attr
	if err := binary.Read(bytes.NewReader(data), binary.NativeEndian, &attr); err != nil {
		return fmt.Errorf("decode perf_event_attr: %w", err)
	}

	if attr.Size != AttrSize {
		return fmt.Errorf("%w: size field is %d, expected %d", ErrInvalidAttrSize, attr.Size, AttrSize)
	}

	*a = attr
	return nil
}

func (a Attr) String() string {
	return fmt.Sprintf(
		"type: %s, size: %d, config: 0x%x, sample_period/freq: %d, sample_type: %s, read_format: %s, "+
			"flags: %s, wakeup_events/watermark: %d, bp_type: %d, bp_addr: 0x%x, bp_len: %d",
		a.Type, a.Size, a.Config, a.SamplePeriodFreq, a.SampleType, a.ReadFormat,
		a.Flags, a.WakeupEventsWatermark, uint32(a.BPType), a.BPAddr, uint64(a.BPLen),
	)
}
