package perftypes

import (
	"fmt"
	"strings"
)

// AttrFlags are used to pass a lot of boolean flags efficiently to the kernel. In the kernel this is a bitfield,
// bit 0 is the least significant bit of the 64 bit word.
type AttrFlags uint64

const (
	// AttrFlagsDisabled off by default
	AttrFlagsDisabled AttrFlags = 1 << iota
	// AttrFlagsInherit children inherit it
	AttrFlagsInherit
	// AttrFlagsPinned must always be on PMU
	AttrFlagsPinned
	// AttrFlagsExclusive only group on PMU
	AttrFlagsExclusive
	// AttrFlagsExcludeUser don't count user
	AttrFlagsExcludeUser
	// AttrFlagsExcludeKernel ditto kernel
	AttrFlagsExcludeKernel
	// AttrFlagsExcludeHV ditto hypervisor
	AttrFlagsExcludeHV
	// AttrFlagsExcludeIdle don't count when idle
	AttrFlagsExcludeIdle
	// AttrFlagsMmap include mmap data
	AttrFlagsMmap
	// AttrFlagsComm include comm data
	AttrFlagsComm
	// AttrFlagsFreq use freq, not period
	AttrFlagsFreq
	// AttrFlagsInheritStat per task counts
	AttrFlagsInheritStat
	// AttrFlagsEnableOnExec next exec enables
	AttrFlagsEnableOnExec
	// AttrFlagsTask trace fork/exit
	AttrFlagsTask
	// AttrFlagsWatermark wakeup_watermark
	AttrFlagsWatermark
	// AttrFlagsPreciseIPConstantSkid SAMPLE_IP must have constant skid, See also PERF_RECORD_MISC_EXACT_IP
	AttrFlagsPreciseIPConstantSkid
	// AttrFlagsPreciseIPRequestZeroSkid SAMPLE_IP requested to have 0 skid, See also PERF_RECORD_MISC_EXACT_IP
	AttrFlagsPreciseIPRequestZeroSkid
	// AttrFlagsMmapData non-exec mmap data
	AttrFlagsMmapData
	// AttrFlagsSampleIDAll sample_type all events
	AttrFlagsSampleIDAll
	// AttrFlagsExcludeHost don't count in host
	AttrFlagsExcludeHost
	// AttrFlagsExcludeGuest don't count in guest
	AttrFlagsExcludeGuest
	// AttrFlagsExcludeCallchainKernel exclude kernel callchains
	AttrFlagsExcludeCallchainKernel
	// AttrFlagsExcludeCallchainUser exclude user callchains
	AttrFlagsExcludeCallchainUser
	// AttrFlagsMmap2 include mmap with inode data
	AttrFlagsMmap2
	// AttrFlagsCommExec flag comm events that are due to an exec
	AttrFlagsCommExec
	// AttrFlagsUseClockid use @clockid for time fields
	AttrFlagsUseClockid
	// AttrFlagsContextSwitch context switch data
	AttrFlagsContextSwitch
	// AttrFlagsWriteBackward Write ring buffer from end to beginning
	AttrFlagsWriteBackward
	// AttrFlagsNamespaces include namespaces data
	AttrFlagsNamespaces
	// AttrFlagsKsymbol include ksymbol events
	AttrFlagsKsymbol
	// AttrFlagsBpfEvent include bpf events
	AttrFlagsBpfEvent
	// AttrFlagsAuxOutput generate AUX records instead of events
	AttrFlagsAuxOutput
	// AttrFlagsCgroup include cgroup events
	AttrFlagsCgroup
	// AttrFlagsTextPoke include text poke events
	AttrFlagsTextPoke
	// AttrFlagsBuildID use build id in mmap2 events
	AttrFlagsBuildID
	// AttrFlagsInheritThread children only inherit if cloned with CLONE_THREAD
	AttrFlagsInheritThread
	// AttrFlagsRemoveOnExec event is removed from task on exec
	AttrFlagsRemoveOnExec
	// AttrFlagsSigtrap send synchronous SIGTRAP on event
	AttrFlagsSigtrap

	// An end marker for enumeration, not an actual flag
	attrFlagsMax
)

// AttrFlagsPreciseIPRequireZeroSkid SAMPLE_IP must have 0 skid, both precise_ip bits set
const AttrFlagsPreciseIPRequireZeroSkid = AttrFlagsPreciseIPConstantSkid | AttrFlagsPreciseIPRequestZeroSkid

// AttrFlagsExcludeAllButUser excludes every privilege level except user mode
const AttrFlagsExcludeAllButUser = AttrFlagsExcludeKernel | AttrFlagsExcludeHV

// CombineFlags ORs all given flags into a single mask. The order of the arguments doesn't matter.
func CombineFlags(flags ...AttrFlags) AttrFlags {
	var mask AttrFlags
	for _, f := range flags {
		mask |= f
	}
	return mask
}

// Has returns true if 'af' has all the specified flags
func (af AttrFlags) Has(flags AttrFlags) bool {
	return af&flags == flags
}

var attrFlagsToString = map[AttrFlags]string{
	AttrFlagsDisabled:                 "disabled",
	AttrFlagsInherit:                  "inherit",
	AttrFlagsPinned:                   "pinned",
	AttrFlagsExclusive:                "exclusive",
	AttrFlagsExcludeUser:              "exclude_user",
	AttrFlagsExcludeKernel:            "exclude_kernel",
	AttrFlagsExcludeHV:                "exclude_hv",
	AttrFlagsExcludeIdle:              "exclude_idle",
	AttrFlagsMmap:                     "mmap",
	AttrFlagsComm:                     "comm",
	AttrFlagsFreq:                     "freq",
	AttrFlagsInheritStat:              "inherit_stat",
	AttrFlagsEnableOnExec:             "enable_on_exec",
	AttrFlagsTask:                     "task",
	AttrFlagsWatermark:                "watermark",
	AttrFlagsPreciseIPConstantSkid:    "precise_ip_0",
	AttrFlagsPreciseIPRequestZeroSkid: "precise_ip_1",
	AttrFlagsMmapData:                 "mmap_data",
	AttrFlagsSampleIDAll:              "sample_id_all",
	AttrFlagsExcludeHost:              "exclude_host",
	AttrFlagsExcludeGuest:             "exclude_guest",
	AttrFlagsExcludeCallchainKernel:   "exclude_callchain_kernel",
	AttrFlagsExcludeCallchainUser:     "exclude_callchain_user",
	AttrFlagsMmap2:                    "mmap2",
	AttrFlagsCommExec:                 "comm_exec",
	AttrFlagsUseClockid:               "use_clockid",
	AttrFlagsContextSwitch:            "context_switch",
	AttrFlagsWriteBackward:            "write_backward",
	AttrFlagsNamespaces:               "namespaces",
	AttrFlagsKsymbol:                  "ksymbol",
	AttrFlagsBpfEvent:                 "bpf_event",
	AttrFlagsAuxOutput:                "aux_output",
	AttrFlagsCgroup:                   "cgroup",
	AttrFlagsTextPoke:                 "text_poke",
	AttrFlagsBuildID:                  "build_id",
	AttrFlagsInheritThread:            "inherit_thread",
	AttrFlagsRemoveOnExec:             "remove_on_exec",
	AttrFlagsSigtrap:                  "sigtrap",
}

func (af AttrFlags) String() string {
	return bitsetString(uint64(af), uint64(attrFlagsMax), func(bit uint64) string {
		return attrFlagsToString[AttrFlags(bit)]
	})
}

// SampleFormat describes which values are included in a sample record.
type SampleFormat uint64

const (
	PERF_SAMPLE_IP SampleFormat = 1 << iota
	PERF_SAMPLE_TID
	PERF_SAMPLE_TIME
	PERF_SAMPLE_ADDR
	PERF_SAMPLE_READ
	PERF_SAMPLE_CALLCHAIN
	PERF_SAMPLE_ID
	PERF_SAMPLE_CPU
	PERF_SAMPLE_PERIOD
	PERF_SAMPLE_STREAM_ID
	PERF_SAMPLE_RAW
	PERF_SAMPLE_BRANCH_STACK
	PERF_SAMPLE_REGS_USER
	PERF_SAMPLE_STACK_USER
	PERF_SAMPLE_WEIGHT
	PERF_SAMPLE_DATA_SRC
	PERF_SAMPLE_IDENTIFIER
	PERF_SAMPLE_TRANSACTION
	PERF_SAMPLE_REGS_INTR

	// An end marker for enumeration, not an actual format bit
	perfSampleMax
)

var sampleFormatToString = map[SampleFormat]string{
	PERF_SAMPLE_IP:           "ip",
	PERF_SAMPLE_TID:          "tid",
	PERF_SAMPLE_TIME:         "time",
	PERF_SAMPLE_ADDR:         "addr",
	PERF_SAMPLE_READ:         "read",
	PERF_SAMPLE_CALLCHAIN:    "callchain",
	PERF_SAMPLE_ID:           "id",
	PERF_SAMPLE_CPU:          "cpu",
	PERF_SAMPLE_PERIOD:       "period",
	PERF_SAMPLE_STREAM_ID:    "stream_id",
	PERF_SAMPLE_RAW:          "raw",
	PERF_SAMPLE_BRANCH_STACK: "branch_stack",
	PERF_SAMPLE_REGS_USER:    "regs_user",
	PERF_SAMPLE_STACK_USER:   "stack_user",
	PERF_SAMPLE_WEIGHT:       "weight",
	PERF_SAMPLE_DATA_SRC:     "data_src",
	PERF_SAMPLE_IDENTIFIER:   "identifier",
	PERF_SAMPLE_TRANSACTION:  "transaction",
	PERF_SAMPLE_REGS_INTR:    "regs_intr",
}

// Known returns true if only defined sample format bits are set
func (sf SampleFormat) Known() bool {
	return sf < perfSampleMax
}

func (sf SampleFormat) String() string {
	return bitsetString(uint64(sf), uint64(perfSampleMax), func(bit uint64) string {
		return sampleFormatToString[SampleFormat(bit)]
	})
}

// ReadFormat describes the layout of the data returned by a read() on the counter file descriptor.
type ReadFormat uint64

const (
	PERF_FORMAT_TOTAL_TIME_ENABLED ReadFormat = 1 << iota
	PERF_FORMAT_TOTAL_TIME_RUNNING
	PERF_FORMAT_ID
	PERF_FORMAT_GROUP

	// An end marker for enumeration, not an actual format bit
	perfFormatMax
)

var readFormatToString = map[ReadFormat]string{
	PERF_FORMAT_TOTAL_TIME_ENABLED: "total_time_enabled",
	PERF_FORMAT_TOTAL_TIME_RUNNING: "total_time_running",
	PERF_FORMAT_ID:                 "id",
	PERF_FORMAT_GROUP:              "group",
}

// Known returns true if only defined read format bits are set
func (rf ReadFormat) Known() bool {
	return rf < perfFormatMax
}

func (rf ReadFormat) String() string {
	return bitsetString(uint64(rf), uint64(perfFormatMax), func(bit uint64) string {
		return readFormatToString[ReadFormat(bit)]
	})
}

func bitsetString(set, max uint64, name func(bit uint64) string) string {
	var names []string
	for i := uint64(1); i != 0 && i < max; i = i << 1 {
		// If this flag is set
		if set&i > 0 {
			str := name(i)
			if str == "" {
				str = fmt.Sprintf("missing str(%d)", i)
			}
			names = append(names, str)
		}
	}

	// Bits which have no name
	if rest := set &^ (max - 1); rest != 0 {
		names = append(names, fmt.Sprintf("unknown(0x%x)", rest))
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}
