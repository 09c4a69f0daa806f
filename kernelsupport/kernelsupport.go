package kernelsupport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dylandreimerink/goperf/internal/cstr"
	"golang.org/x/sys/unix"
)

// KernelFeatures is a set of flagsets which describe the perf event support of a kernel version.
type KernelFeatures struct {
	// PerfEvents is set to true if perf_event_open is supported on the current kernel version and arch combo
	PerfEvents bool
	Arch       ArchSupport
	Perf       PerfSupport
}

// Check the kernel features at startup since they will not change during program execution.
// This singleton should be used rather than constantly calling GetKernelFeatures or
// MustGetKernelFeatures to improve performance.
var CurrentFeatures = MustGetKernelFeatures()

// MustGetKernelFeatures runs GetKernelFeatures but panics if any error is detected
func MustGetKernelFeatures() KernelFeatures {
	features, err := GetKernelFeatures()
	if err != nil {
		panic(err)
	}
	return features
}

// GetKernelFeatures returns a list of kernel features for the kernel on which
// the current program is currently running.
func GetKernelFeatures() (KernelFeatures, error) {
	var utsname unix.Utsname
	err := unix.Uname(&utsname)
	if err != nil {
		return KernelFeatures{}, fmt.Errorf("error while calling unix.Uname: %w", err)
	}

	return featuresFor(cstr.BytesToString(utsname.Release[:]), cstr.BytesToString(utsname.Machine[:]))
}

// featuresFor returns the features of a kernel with the given uname release and machine strings
func featuresFor(release, machine string) (KernelFeatures, error) {
	version, err := parseKernelVersion(release)
	if err != nil {
		return KernelFeatures{}, err
	}

	features := KernelFeatures{}
	for _, kvf := range featureMinVersion {
		if version.Higher(kvf.version) {
			features.Arch = features.Arch | kvf.features.Arch
			features.Perf = features.Perf | kvf.features.Perf
		}
	}

	// Attempt to match the machine UTS string to an architecture
	if arch, ok := machineToArch[machine]; ok {
		features.PerfEvents = features.Arch.Has(arch) && features.Perf.Has(KFeatPerfEventOpen)
	}

	return features, nil
}

var machineToArch = map[string]ArchSupport{
	"x86_64":     KFeatArchx86_64,
	"i386":       KFeatArchx86,
	"i486":       KFeatArchx86,
	"i586":       KFeatArchx86,
	"i686":       KFeatArchx86,
	"arm64":      KFeatArchARM64,
	"armv8b":     KFeatArchARM64,
	"aarch64_be": KFeatArchARM64,
	"aarch64":    KFeatArchARM64,
	"arm":        KFeatArchARM32,
	"arm32":      KFeatArchARM32,
	"armv7l":     KFeatArchARM32,
	"armv8l":     KFeatArchARM32,
	"ppc64":      KFeatArchPPC64,
	"ppc64le":    KFeatArchPPC64,
	"s390x":      KFeatArchs390x,
	"mips64":     KFeatArchMIPS64,
	"mips64le":   KFeatArchMIPS64,
	"riscv64":    KFeatArchRiscV64,
}

type kernelVersion struct {
	major int
	minor int
	patch int
}

// Higher returns true if the 'cmp' version is higher than the 'kv' version
func (kv kernelVersion) Higher(cmp kernelVersion) bool {
	if kv.major != cmp.major {
		return kv.major > cmp.major
	}

	// Majors are equal

	if kv.minor != cmp.minor {
		return kv.minor > cmp.minor
	}

	// Minors are equal

	return kv.patch >= cmp.patch
}

func (kv kernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", kv.major, kv.minor, kv.patch)
}

func parseKernelVersion(release string) (version kernelVersion, err error) {
	parts := strings.Split(release, "-")

	// The base version is before the -, discard anything after the -
	base := parts[0]
	baseParts := strings.Split(base, ".")
	if len(baseParts) > 2 {
		version.patch, err = atoiPrefix(baseParts[2])
		if err != nil {
			return version, fmt.Errorf("error while parsing kernel patch version '%s': %w", baseParts[2], err)
		}
	}

	if len(baseParts) > 1 {
		version.minor, err = atoiPrefix(baseParts[1])
		if err != nil {
			return version, fmt.Errorf("error while parsing kernel minor version '%s': %w", baseParts[1], err)
		}
	}

	version.major, err = atoiPrefix(baseParts[0])
	if err != nil {
		return version, fmt.Errorf("error while parsing kernel major version '%s': %w", baseParts[0], err)
	}

	return version, nil
}

// atoiPrefix parses the leading digits of s, distro kernels use releases like "5.15.0+" or "4.19.0rc1"
func atoiPrefix(s string) (int, error) {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	return strconv.Atoi(s[:end])
}
