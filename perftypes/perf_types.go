package perftypes

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when a counter type is not one of the PERF_TYPE_* values
	ErrUnknownType = errors.New("unknown perf counter type")
	// ErrInvalidEventForType is returned when an event identifier is not part of the vocabulary of the counter type
	ErrInvalidEventForType = errors.New("event is not valid for counter type")
	// ErrInvalidCachePacking is returned when one of the components of a HW_CACHE config is out of range
	ErrInvalidCachePacking = errors.New("invalid hardware cache event packing")
)

// EventError adds the counter type and config which caused a validation error.
type EventError struct {
	Type   Type
	Config uint64
	Err    error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("%s (type: %s, config: 0x%x)", e.Err.Error(), e.Type, e.Config)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// Type is the top level category of a perf counter, it decides how the config field of the attribute is interpreted.
// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/perf_event.h#L32
type Type uint32

const (
	// PERF_TYPE_HARDWARE This indicates one of the "generalized"  hardware  events
	// provided  by the kernel.  See the config field definition
	// for more details.
	PERF_TYPE_HARDWARE Type = iota

	// PERF_TYPE_SOFTWARE This indicates one of the  software-defined  events  provided
	// by  the  kernel  (even  if  no hardware support is
	// available).
	PERF_TYPE_SOFTWARE

	// PERF_TYPE_TRACEPOINT This indicates a tracepoint provided by the kernel tracepoint infrastructure.
	PERF_TYPE_TRACEPOINT

	// PERF_TYPE_HW_CACHE  This  indicates  a hardware cache event. This has a special encoding,
	// see PackCache.
	PERF_TYPE_HW_CACHE

	// PERF_TYPE_RAW This indicates a "raw" implementation-specific  event  in
	// the config field.
	PERF_TYPE_RAW

	// PERF_TYPE_BREAKPOINT This  indicates  a hardware breakpoint as provided by the CPU.
	// Breakpoints can be read/write accesses  to  an  address as well as execution of an instruction address.
	PERF_TYPE_BREAKPOINT

	// An end marker for enumeration, not an actual type
	perfTypeMax
)

var typeToString = map[Type]string{
	PERF_TYPE_HARDWARE:   "hardware",
	PERF_TYPE_SOFTWARE:   "software",
	PERF_TYPE_TRACEPOINT: "tracepoint",
	PERF_TYPE_HW_CACHE:   "hw-cache",
	PERF_TYPE_RAW:        "raw",
	PERF_TYPE_BREAKPOINT: "breakpoint",
}

// Valid returns true if t is one of the defined counter types
func (t Type) Valid() bool {
	return t < perfTypeMax
}

func (t Type) String() string {
	str, ok := typeToString[t]
	if !ok {
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
	return str
}

// Event is a counter type specific event identifier. The concrete types implementing Event are the only valid
// variants, the interface is sealed so a hardware event can never be mistaken for a software event with the same
// numeric value.
type Event interface {
	// Type returns the counter type to which this event belongs
	Type() Type
	// Config returns the value of the config field of the attribute
	Config() uint64
	// String returns the name of the event as accepted by ParseEvent
	String() string

	isEvent()
}

// IsLegal returns true if the event is a member of the vocabulary of counter type t.
func IsLegal(t Type, ev Event) bool {
	if ev == nil || ev.Type() != t {
		return false
	}

	switch e := ev.(type) {
	case HardwareEvent:
		return e < hwEventMax
	case SoftwareEvent:
		return e < swEventMax
	case CacheEvent:
		return e.valid()
	case TracepointEvent, RawEvent, BreakpointEvent:
		// These are open ended, the kernel does the validation
		return true
	}

	return false
}

// IsLegalConfig is the untyped version of IsLegal, it checks if the given config value can be a member of the
// vocabulary of counter type t. It returns false for undefined counter types.
func IsLegalConfig(t Type, config uint64) bool {
	switch t {
	case PERF_TYPE_HARDWARE:
		return config < uint64(hwEventMax)
	case PERF_TYPE_SOFTWARE:
		return config < uint64(swEventMax)
	case PERF_TYPE_HW_CACHE:
		_, err := UnpackCache(config)
		return err == nil
	case PERF_TYPE_TRACEPOINT, PERF_TYPE_RAW, PERF_TYPE_BREAKPOINT:
		return true
	}

	return false
}

// ValidateConfig checks that config is legal for counter type t and returns an *EventError wrapping
// ErrUnknownType, ErrInvalidCachePacking or ErrInvalidEventForType if it isn't.
func ValidateConfig(t Type, config uint64) error {
	if !t.Valid() {
		return &EventError{Type: t, Config: config, Err: ErrUnknownType}
	}

	if t == PERF_TYPE_HW_CACHE {
		if _, err := UnpackCache(config); err != nil {
			return &EventError{Type: t, Config: config, Err: err}
		}
		return nil
	}

	if !IsLegalConfig(t, config) {
		return &EventError{Type: t, Config: config, Err: ErrInvalidEventForType}
	}

	return nil
}

// Events returns all legal events for counter type t. For the open ended vocabularies (tracepoint, raw and
// breakpoint) nil is returned.
func Events(t Type) []Event {
	var events []Event
	switch t {
	case PERF_TYPE_HARDWARE:
		for e := HardwareEvent(0); e < hwEventMax; e++ {
			events = append(events, e)
		}
	case PERF_TYPE_SOFTWARE:
		for e := SoftwareEvent(0); e < swEventMax; e++ {
			events = append(events, e)
		}
	case PERF_TYPE_HW_CACHE:
		for c := CacheID(0); c < cacheIDMax; c++ {
			for o := CacheOp(0); o < cacheOpMax; o++ {
				for r := CacheResult(0); r < cacheResultMax; r++ {
					events = append(events, CacheEvent{Cache: c, Op: o, Result: r})
				}
			}
		}
	}

	return events
}

// EventFromConfig converts an untyped type/config pair into its typed Event. Breakpoint events only carry the
// type information, the address, length and access type live outside of the config field.
func EventFromConfig(t Type, config uint64) (Event, error) {
	if err := ValidateConfig(t, config); err != nil {
		return nil, err
	}

	switch t {
	case PERF_TYPE_HARDWARE:
		return HardwareEvent(config), nil
	case PERF_TYPE_SOFTWARE:
		return SoftwareEvent(config), nil
	case PERF_TYPE_HW_CACHE:
		return UnpackCache(config)
	case PERF_TYPE_TRACEPOINT:
		return TracepointEvent(config), nil
	case PERF_TYPE_RAW:
		return RawEvent(config), nil
	case PERF_TYPE_BREAKPOINT:
		return BreakpointEvent{}, nil
	}

	// Unreachable, ValidateConfig rejects unknown types
	panic(fmt.Sprintf("unhandled perf type %d", t))
}
