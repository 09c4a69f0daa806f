package goperf

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dylandreimerink/goperf/perftypes"
)

// This file contains tracefs related code.

// ErrTracepointNotFound is returned when a tracepoint doesn't exist in any of the tracefs mounts
var ErrTracepointNotFound = errors.New("tracepoint not found")

// tracefs is mounted at /sys/kernel/tracing since 4.1, older kernels only have it in debugfs
var tracefsRoots = []string{
	"/sys/kernel/tracing",
	"/sys/kernel/debug/tracing",
}

// TracepointEvent returns the event of an existing tracepoint, for example TracepointEvent("sched",
// "sched_switch"). If the function returns permission errors the program is not being run a user with the correct
// permissions.
func TracepointEvent(category, name string) (perftypes.TracepointEvent, error) {
	return tracepointID(tracefsRoots, category, name)
}

func tracepointID(roots []string, category, name string) (perftypes.TracepointEvent, error) {
	if !validTracefsName(category) || !validTracefsName(name) {
		return 0, fmt.Errorf("invalid tracepoint name '%s:%s'", category, name)
	}

	for _, root := range roots {
		contents, err := os.ReadFile(filepath.Join(root, "events", category, name, "id"))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("read tracepoint id: %w", err)
		}

		id, err := strconv.ParseUint(strings.TrimSpace(string(contents)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse tracepoint id: %w", err)
		}

		return perftypes.TracepointEvent(id), nil
	}

	return 0, fmt.Errorf("%s:%s: %w", category, name, ErrTracepointNotFound)
}

func validTracefsName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsRune(name, '/')
}
