package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type testResult struct {
	Package  string
	Name     string
	Status   string
	Duration time.Duration
}

// Matches the result lines of "-test.v" output, for example "    --- SKIP: TestIntegrationInstructions (0.00s)"
var resultLine = regexp.MustCompile(`^\s*--- (PASS|FAIL|SKIP): (\S+) \(([0-9.]+)s\)`)

// parseTestOutput returns the results of all tests and sub-tests in the verbose output of a test binary, keyed by
// "<pkg>.<test name>".
func parseTestOutput(pkg string, output []byte) map[string]testResult {
	results := make(map[string]testResult)

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		match := resultLine.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}

		seconds, err := strconv.ParseFloat(match[3], 64)
		if err != nil {
			continue
		}

		results[pkg+"."+match[2]] = testResult{
			Package:  pkg,
			Name:     match[2],
			Status:   match[1],
			Duration: time.Duration(seconds * float64(time.Second)),
		}
	}

	return results
}

func sortedTestNames(results map[string]testResult) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func printSummary(out io.Writer, results map[string]testResult, coverage []fileCoverage) {
	counts := make(map[string]int)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range sortedTestNames(results) {
		res := results[name]
		counts[res.Status]++

		if res.Status != statusPass || flagVerbose {
			fmt.Fprintf(w, "%s\t%s\t%s\n", res.Status, name, res.Duration)
		}
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d passed, %d failed, %d skipped\n", counts[statusPass], counts[statusFail], counts[statusSkip])

	if len(coverage) == 0 {
		return
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, fc := range coverage {
		fmt.Fprintf(w, "%s\t%.1f%%\n", fc.FileName, fc.Percent())
	}
	fmt.Fprintf(w, "total\t%.1f%%\n", totalCoverage(coverage).Percent())
	w.Flush()
}
