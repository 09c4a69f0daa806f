// This file is included on every linux architecture for which the syscall number is unknown

//go:build linux && !386 && !amd64 && !arm && !arm64 && !ppc64 && !ppc64le && !riscv64 && !s390x && !mips64 && !mips64le

package perfsys

// Using a wrong syscall number could call an unrelated syscall, so unknown architectures fail to compile.
const SYS_PERF_EVENT_OPEN = perfEventOpenSyscallNumberUnknownForArchitecture
