package kernelsupport

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const perfEventParanoidPath = "/proc/sys/kernel/perf_event_paranoid"

// ErrNoPerfEvents is returned by PerfEventParanoid when the kernel was built without perf events
var ErrNoPerfEvents = errors.New("kernel has no perf event support")

// Values of /proc/sys/kernel/perf_event_paranoid, higher values restrict unprivileged users further
const (
	// ParanoidAllowAll allows all users to use (almost) all events
	ParanoidAllowAll = -1
	// ParanoidDisallowRaw disallows raw tracepoint access for unprivileged users
	ParanoidDisallowRaw = 0
	// ParanoidDisallowCPU disallows CPU wide events for unprivileged users
	ParanoidDisallowCPU = 1
	// ParanoidDisallowKernel disallows kernel profiling for unprivileged users
	ParanoidDisallowKernel = 2
)

// Supported returns true if the kernel supports perf events. The existence of the perf_event_paranoid file is
// the official way to detect this.
func Supported() bool {
	_, err := os.Stat(perfEventParanoidPath)
	return err == nil
}

// PerfEventParanoid returns the current perf_event_paranoid level
func PerfEventParanoid() (int, error) {
	contents, err := os.ReadFile(perfEventParanoidPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNoPerfEvents
		}
		return 0, fmt.Errorf("read %s: %w", perfEventParanoidPath, err)
	}

	return parseParanoid(string(contents))
}

func parseParanoid(contents string) (int, error) {
	level, err := strconv.Atoi(strings.TrimSpace(contents))
	if err != nil {
		return 0, fmt.Errorf("parse perf_event_paranoid '%s': %w", strings.TrimSpace(contents), err)
	}

	return level, nil
}
