package kernelsupport

type kernelFeatureVersion struct {
	version  kernelVersion
	features KernelFeatures
}

// a list of perf kernel features which are available from a given kernel version forward.
// largely based on the perf_event_open(2) man page and the arch/*/kernel/perf_event*.c history
var featureMinVersion = []kernelFeatureVersion{
	{
		version: kernelVersion{major: 2, minor: 6, patch: 31},
		features: KernelFeatures{
			Arch: KFeatArchx86_64 | KFeatArchx86 | KFeatArchPPC64,
			Perf: KFeatPerfEventOpen,
		},
	},
	{
		version: kernelVersion{major: 2, minor: 6, patch: 33},
		features: KernelFeatures{
			Perf: KFeatPerfTypeBreakpoint | KFeatPerfSWFaultsExt,
		},
	},
	{
		version: kernelVersion{major: 2, minor: 6, patch: 34},
		features: KernelFeatures{
			Arch: KFeatArchARM32,
		},
	},
	{
		version: kernelVersion{major: 2, minor: 6, patch: 35},
		features: KernelFeatures{
			Perf: KFeatPerfAttrFlagsExt,
		},
	},
	{
		version: kernelVersion{major: 2, minor: 6, patch: 37},
		features: KernelFeatures{
			Arch: KFeatArchMIPS64,
		},
	},
	{
		version: kernelVersion{major: 3, minor: 4},
		features: KernelFeatures{
			Arch: KFeatArchs390x,
		},
	},
	{
		version: kernelVersion{major: 3, minor: 7},
		features: KernelFeatures{
			Arch: KFeatArchARM64,
		},
	},
	{
		version: kernelVersion{major: 3, minor: 14},
		features: KernelFeatures{
			Perf: KFeatPerfFlagFDCloexec,
		},
	},
	{
		version: kernelVersion{major: 4, minor: 15},
		features: KernelFeatures{
			Arch: KFeatArchRiscV64,
		},
	},
}
