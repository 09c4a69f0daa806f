package kernelsupport

import "testing"

func Test_kernelVersion_Higher(t *testing.T) {
	tests := []struct {
		name string
		a    kernelVersion
		b    kernelVersion
		want bool
	}{
		{
			name: "2.0.0 >= 1.0.0 - major",
			a:    kernelVersion{major: 2},
			b:    kernelVersion{major: 1},
			want: true,
		},
		{
			name: "2.1.0 >= 2.0.0 - minor",
			a:    kernelVersion{major: 2, minor: 1},
			b:    kernelVersion{major: 2},
			want: true,
		},
		{
			name: "2.1.1 >= 2.1.0 - patch",
			a:    kernelVersion{major: 2, minor: 1, patch: 1},
			b:    kernelVersion{major: 2, minor: 1},
			want: true,
		},
		{
			name: "2.2.2 >= 2.2.2 - exact",
			a:    kernelVersion{major: 2, minor: 2, patch: 2},
			b:    kernelVersion{major: 2, minor: 2, patch: 2},
			want: true,
		},
		{
			name: "1.1.0 >= 2.0.0 - major false",
			a:    kernelVersion{major: 1, minor: 1},
			b:    kernelVersion{major: 2},
			want: false,
		},
		{
			name: "2.1.0 >= 2.2.0 - minor false",
			a:    kernelVersion{major: 2, minor: 1},
			b:    kernelVersion{major: 2, minor: 2},
			want: false,
		},
		{
			name: "2.2.0 >= 2.2.2 - patch false",
			a:    kernelVersion{major: 2, minor: 2},
			b:    kernelVersion{major: 2, minor: 2, patch: 1},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Higher(tt.b); got != tt.want {
				t.Errorf("kernelVersion.Higher() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_parseKernelVersion(t *testing.T) {
	tests := []struct {
		release string
		want    kernelVersion
		wantErr bool
	}{
		{release: "5.15.0-91-generic", want: kernelVersion{major: 5, minor: 15}},
		{release: "6.18.44-fc-v130", want: kernelVersion{major: 6, minor: 18, patch: 44}},
		{release: "2.6.31", want: kernelVersion{major: 2, minor: 6, patch: 31}},
		{release: "4.19", want: kernelVersion{major: 4, minor: 19}},
		{release: "5.10.0+", want: kernelVersion{major: 5, minor: 10}},
		{release: "6.1rc3", want: kernelVersion{major: 6, minor: 1}},
		{release: "", wantErr: true},
		{release: "linux", wantErr: true},
		{release: "5.x.1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			got, err := parseKernelVersion(tt.release)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseKernelVersion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseKernelVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_featuresFor(t *testing.T) {
	tests := []struct {
		name       string
		release    string
		machine    string
		perfEvents bool
		has        PerfSupport
		hasNot     PerfSupport
	}{
		{
			name:       "modern x86_64",
			release:    "5.15.0-91-generic",
			machine:    "x86_64",
			perfEvents: true,
			has:        KFeatPerfEventOpen | KFeatPerfTypeBreakpoint | KFeatPerfFlagFDCloexec,
		},
		{
			name:       "before perf_event_open",
			release:    "2.6.30",
			machine:    "x86_64",
			perfEvents: false,
			hasNot:     KFeatPerfEventOpen,
		},
		{
			name:       "first perf kernel",
			release:    "2.6.31",
			machine:    "i686",
			perfEvents: true,
			has:        KFeatPerfEventOpen,
			hasNot:     KFeatPerfTypeBreakpoint,
		},
		{
			name:       "arm64 before arch support",
			release:    "3.6.0",
			machine:    "aarch64",
			perfEvents: false,
			has:        KFeatPerfEventOpen,
		},
		{
			name:       "riscv64",
			release:    "5.4.0",
			machine:    "riscv64",
			perfEvents: true,
		},
		{
			name:       "unknown machine",
			release:    "6.1.0",
			machine:    "sparc64",
			perfEvents: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, err := featuresFor(tt.release, tt.machine)
			if err != nil {
				t.Fatal(err)
			}
			if features.PerfEvents != tt.perfEvents {
				t.Errorf("PerfEvents = %v, want %v", features.PerfEvents, tt.perfEvents)
			}
			if !features.Perf.Has(tt.has) {
				t.Errorf("Perf = '%s', want '%s'", features.Perf, tt.has)
			}
			if tt.hasNot != 0 && features.Perf&tt.hasNot != 0 {
				t.Errorf("Perf = '%s', should not have '%s'", features.Perf, tt.hasNot)
			}
		})
	}
}

func Test_parseParanoid(t *testing.T) {
	tests := []struct {
		contents string
		want     int
		wantErr  bool
	}{
		{contents: "2\n", want: ParanoidDisallowKernel},
		{contents: "-1\n", want: ParanoidAllowAll},
		{contents: "4", want: 4},
		{contents: "", wantErr: true},
		{contents: "high\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.contents, func(t *testing.T) {
			got, err := parseParanoid(tt.contents)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseParanoid() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseParanoid() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFlagsetString(t *testing.T) {
	if got := PerfSupport(0).String(); got != "No support" {
		t.Errorf("PerfSupport(0).String() = %q", got)
	}
	if got := (KFeatPerfEventOpen | KFeatPerfTypeBreakpoint).String(); got != "perf_event_open, Breakpoint counters" {
		t.Errorf("PerfSupport.String() = %q", got)
	}
	if got := (KFeatArchx86_64 | KFeatArchRiscV64).String(); got != "x86_64, RISC-V 64" {
		t.Errorf("ArchSupport.String() = %q", got)
	}
}
