package perftypes

import "fmt"

// HardwareEvent is a generalized hardware event, it is used with PERF_TYPE_HARDWARE.
// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/perf_event.h#L52
type HardwareEvent uint64

const (
	// PERF_COUNT_HW_CPU_CYCLES Total cycles. Be wary of what happens during CPU frequency scaling.
	PERF_COUNT_HW_CPU_CYCLES HardwareEvent = iota
	// PERF_COUNT_HW_INSTRUCTIONS Retired instructions.
	PERF_COUNT_HW_INSTRUCTIONS
	// PERF_COUNT_HW_CACHE_REFERENCES Cache accesses. Usually this indicates Last Level Cache accesses.
	PERF_COUNT_HW_CACHE_REFERENCES
	// PERF_COUNT_HW_CACHE_MISSES Cache misses. Usually this indicates Last Level Cache misses.
	PERF_COUNT_HW_CACHE_MISSES
	// PERF_COUNT_HW_BRANCH_INSTRUCTIONS Retired branch instructions.
	PERF_COUNT_HW_BRANCH_INSTRUCTIONS
	// PERF_COUNT_HW_BRANCH_MISSES Mispredicted branch instructions.
	PERF_COUNT_HW_BRANCH_MISSES
	// PERF_COUNT_HW_BUS_CYCLES Bus cycles, which can be different from total cycles.
	PERF_COUNT_HW_BUS_CYCLES

	// An end marker for enumeration, not an actual event
	hwEventMax
)

var hwEventToString = map[HardwareEvent]string{
	PERF_COUNT_HW_CPU_CYCLES:          "cpu-cycles",
	PERF_COUNT_HW_INSTRUCTIONS:        "instructions",
	PERF_COUNT_HW_CACHE_REFERENCES:    "cache-references",
	PERF_COUNT_HW_CACHE_MISSES:        "cache-misses",
	PERF_COUNT_HW_BRANCH_INSTRUCTIONS: "branch-instructions",
	PERF_COUNT_HW_BRANCH_MISSES:       "branch-misses",
	PERF_COUNT_HW_BUS_CYCLES:          "bus-cycles",
}

func (e HardwareEvent) Type() Type     { return PERF_TYPE_HARDWARE }
func (e HardwareEvent) Config() uint64 { return uint64(e) }
func (e HardwareEvent) isEvent()       {}

func (e HardwareEvent) String() string {
	if str, ok := hwEventToString[e]; ok {
		return str
	}
	return fmt.Sprintf("hardware(%d)", uint64(e))
}

// SoftwareEvent is an event provided by the kernel itself, it is used with PERF_TYPE_SOFTWARE.
// https://elixir.bootlin.com/linux/latest/source/include/uapi/linux/perf_event.h#L110
type SoftwareEvent uint64

const (
	// PERF_COUNT_SW_CPU_CLOCK reports the CPU clock, a high-resolution per-CPU timer.
	PERF_COUNT_SW_CPU_CLOCK SoftwareEvent = iota
	// PERF_COUNT_SW_TASK_CLOCK reports a clock count specific to the task that is running.
	PERF_COUNT_SW_TASK_CLOCK
	// PERF_COUNT_SW_PAGE_FAULTS reports the number of page faults.
	PERF_COUNT_SW_PAGE_FAULTS
	// PERF_COUNT_SW_CONTEXT_SWITCHES counts context switches.
	PERF_COUNT_SW_CONTEXT_SWITCHES
	// PERF_COUNT_SW_CPU_MIGRATIONS reports the number of times the process has migrated to a new CPU.
	PERF_COUNT_SW_CPU_MIGRATIONS
	// PERF_COUNT_SW_PAGE_FAULTS_MIN counts the number of minor page faults.
	PERF_COUNT_SW_PAGE_FAULTS_MIN
	// PERF_COUNT_SW_PAGE_FAULTS_MAJ counts the number of major page faults.
	PERF_COUNT_SW_PAGE_FAULTS_MAJ
	// PERF_COUNT_SW_ALIGNMENT_FAULTS counts alignment faults, since Linux 2.6.33.
	PERF_COUNT_SW_ALIGNMENT_FAULTS
	// PERF_COUNT_SW_EMULATION_FAULTS counts the number of emulation faults, since Linux 2.6.33.
	PERF_COUNT_SW_EMULATION_FAULTS

	// An end marker for enumeration, not an actual event
	swEventMax
)

var swEventToString = map[SoftwareEvent]string{
	PERF_COUNT_SW_CPU_CLOCK:        "cpu-clock",
	PERF_COUNT_SW_TASK_CLOCK:       "task-clock",
	PERF_COUNT_SW_PAGE_FAULTS:      "page-faults",
	PERF_COUNT_SW_CONTEXT_SWITCHES: "context-switches",
	PERF_COUNT_SW_CPU_MIGRATIONS:   "cpu-migrations",
	PERF_COUNT_SW_PAGE_FAULTS_MIN:  "minor-faults",
	PERF_COUNT_SW_PAGE_FAULTS_MAJ:  "major-faults",
	PERF_COUNT_SW_ALIGNMENT_FAULTS: "alignment-faults",
	PERF_COUNT_SW_EMULATION_FAULTS: "emulation-faults",
}

func (e SoftwareEvent) Type() Type     { return PERF_TYPE_SOFTWARE }
func (e SoftwareEvent) Config() uint64 { return uint64(e) }
func (e SoftwareEvent) isEvent()       {}

func (e SoftwareEvent) String() string {
	if str, ok := swEventToString[e]; ok {
		return str
	}
	return fmt.Sprintf("software(%d)", uint64(e))
}

// TracepointEvent is the ID of a kernel tracepoint as found in the tracefs "id" file of the tracepoint.
type TracepointEvent uint64

func (e TracepointEvent) Type() Type     { return PERF_TYPE_TRACEPOINT }
func (e TracepointEvent) Config() uint64 { return uint64(e) }
func (e TracepointEvent) isEvent()       {}

func (e TracepointEvent) String() string {
	return fmt.Sprintf("tracepoint(%d)", uint64(e))
}

// RawEvent is a implementation specific event, the meaning of the value depends on the PMU of the CPU.
type RawEvent uint64

func (e RawEvent) Type() Type     { return PERF_TYPE_RAW }
func (e RawEvent) Config() uint64 { return uint64(e) }
func (e RawEvent) isEvent()       {}

func (e RawEvent) String() string {
	return fmt.Sprintf("r%x", uint64(e))
}

// BreakpointEvent describes a hardware breakpoint. The config of a breakpoint is always 0, the access type, address
// and length are passed via the dedicated breakpoint fields of the attribute.
type BreakpointEvent struct {
	Access BreakpointType
	Addr   uint64
	Len    BreakpointLen
}

func (e BreakpointEvent) Type() Type     { return PERF_TYPE_BREAKPOINT }
func (e BreakpointEvent) Config() uint64 { return 0 }
func (e BreakpointEvent) isEvent()       {}

func (e BreakpointEvent) String() string {
	str := fmt.Sprintf("mem:0x%x", e.Addr)
	if e.Len != 0 {
		str += fmt.Sprintf("/%d", uint64(e.Len))
	}
	if access := e.Access.String(); access != "" {
		str += ":" + access
	}
	return str
}
