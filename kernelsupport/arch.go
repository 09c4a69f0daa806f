package kernelsupport

import (
	"fmt"
	"strings"
)

// ArchSupport is a flagset which describes on which architectures perf events are supported
type ArchSupport uint64

const (
	// KFeatArchx86_64 means the kernel has perf event support on the x86_64 architecture
	KFeatArchx86_64 ArchSupport = 1 << iota
	// KFeatArchx86 means the kernel has perf event support on the x86_32 architecture
	KFeatArchx86
	// KFeatArchPPC64 means the kernel has perf event support on the PowerPC64 architecture
	KFeatArchPPC64
	// KFeatArchARM32 means the kernel has perf event support on the ARM32 architecture
	KFeatArchARM32
	// KFeatArchMIPS64 means the kernel has perf event support on the MIPS64 architecture
	KFeatArchMIPS64
	// KFeatArchs390x means the kernel has perf event support on the s390x architecture
	KFeatArchs390x
	// KFeatArchARM64 means the kernel has perf event support on the ARM64 architecture
	KFeatArchARM64
	// KFeatArchRiscV64 means the kernel has perf event support on the RISC-V 64 bit architecture
	KFeatArchRiscV64

	// An end marker for enumeration, not an actual feature flag
	kFeatArchMax //nolint:revive // leading k is used to stay consistent with exported vars
)

// Has returns true if 'as' has all the specified flags
func (as ArchSupport) Has(flags ArchSupport) bool {
	return as&flags == flags
}

var archSupportToString = map[ArchSupport]string{
	KFeatArchx86_64:  "x86_64",
	KFeatArchx86:     "x86_32",
	KFeatArchPPC64:   "PowerPC64",
	KFeatArchARM32:   "ARM32",
	KFeatArchMIPS64:  "MIPS64",
	KFeatArchs390x:   "s390x",
	KFeatArchARM64:   "ARM64",
	KFeatArchRiscV64: "RISC-V 64",
}

func (as ArchSupport) String() string {
	var archs []string
	for i := ArchSupport(1); i < kFeatArchMax; i = i << 1 {
		// If this flag is set
		if as&i > 0 {
			archStr := archSupportToString[i]
			if archStr == "" {
				archStr = fmt.Sprintf("missing arch str(%d)", i)
			}
			archs = append(archs, archStr)
		}
	}

	if len(archs) == 0 {
		return "No support"
	}

	return strings.Join(archs, ", ")
}
