package kernelsupport

import (
	"fmt"
	"strings"
)

// PerfSupport is a flagset that describes which parts of the perf_event_open API are supported
type PerfSupport uint64

const (
	// KFeatPerfEventOpen means the perf_event_open syscall exists
	KFeatPerfEventOpen PerfSupport = 1 << iota
	// KFeatPerfTypeBreakpoint means PERF_TYPE_BREAKPOINT counters can be opened
	KFeatPerfTypeBreakpoint
	// KFeatPerfSWFaultsExt means the alignment and emulation fault software events exist
	KFeatPerfSWFaultsExt
	// KFeatPerfAttrFlagsExt means the attribute flags after the watermark bit are understood, starting with
	// precise_ip
	KFeatPerfAttrFlagsExt
	// KFeatPerfFlagFDCloexec means PERF_FLAG_FD_CLOEXEC can be passed to perf_event_open
	KFeatPerfFlagFDCloexec

	// An end marker for enumeration, not an actual feature flag
	kFeatPerfMax //nolint:revive // leading k is used to stay consistent with exported vars
)

// Has returns true if 'ps' has all the specified flags
func (ps PerfSupport) Has(flags PerfSupport) bool {
	return ps&flags == flags
}

var perfSupportToString = map[PerfSupport]string{
	KFeatPerfEventOpen:      "perf_event_open",
	KFeatPerfTypeBreakpoint: "Breakpoint counters",
	KFeatPerfSWFaultsExt:    "Alignment/emulation faults",
	KFeatPerfAttrFlagsExt:   "Extended attribute flags",
	KFeatPerfFlagFDCloexec:  "Close-on-exec open flag",
}

func (ps PerfSupport) String() string {
	var perfFeats []string
	for i := PerfSupport(1); i < kFeatPerfMax; i = i << 1 {
		// If this flag is set
		if ps&i > 0 {
			perfStr := perfSupportToString[i]
			if perfStr == "" {
				perfStr = fmt.Sprintf("missing perf str(%d)", i)
			}
			perfFeats = append(perfFeats, perfStr)
		}
	}

	if len(perfFeats) == 0 {
		return "No support"
	}

	return strings.Join(perfFeats, ", ")
}
