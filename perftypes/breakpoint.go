package perftypes

import "fmt"

// BreakpointType is the access type which triggers a hardware breakpoint.
// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/hw_breakpoint.h
type BreakpointType uint32

const (
	HW_BREAKPOINT_EMPTY BreakpointType = 0
	HW_BREAKPOINT_R     BreakpointType = 1
	HW_BREAKPOINT_W     BreakpointType = 2
	HW_BREAKPOINT_RW                   = HW_BREAKPOINT_R | HW_BREAKPOINT_W
	HW_BREAKPOINT_X     BreakpointType = 4
	// HW_BREAKPOINT_INVALID an execute breakpoint can't also be a data breakpoint
	HW_BREAKPOINT_INVALID = HW_BREAKPOINT_RW | HW_BREAKPOINT_X
)

// Valid returns false for combinations the kernel rejects
func (bt BreakpointType) Valid() bool {
	switch bt {
	case HW_BREAKPOINT_R, HW_BREAKPOINT_W, HW_BREAKPOINT_RW, HW_BREAKPOINT_X:
		return true
	}
	return false
}

func (bt BreakpointType) String() string {
	var str string
	if bt&HW_BREAKPOINT_R != 0 {
		str += "r"
	}
	if bt&HW_BREAKPOINT_W != 0 {
		str += "w"
	}
	if bt&HW_BREAKPOINT_X != 0 {
		str += "x"
	}
	if rest := bt &^ HW_BREAKPOINT_INVALID; rest != 0 {
		str += fmt.Sprintf("?(%d)", uint32(rest))
	}
	return str
}

// BreakpointLen is the amount of bytes a data breakpoint watches.
type BreakpointLen uint64

const (
	HW_BREAKPOINT_LEN_1 BreakpointLen = 1
	HW_BREAKPOINT_LEN_2 BreakpointLen = 2
	HW_BREAKPOINT_LEN_4 BreakpointLen = 4
	HW_BREAKPOINT_LEN_8 BreakpointLen = 8
)

// Valid returns true if the length is one of the lengths supported by all architectures
func (bl BreakpointLen) Valid() bool {
	switch bl {
	case HW_BREAKPOINT_LEN_1, HW_BREAKPOINT_LEN_2, HW_BREAKPOINT_LEN_4, HW_BREAKPOINT_LEN_8:
		return true
	}
	return false
}
