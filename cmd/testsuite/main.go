package main

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path"
	"path/filepath"
	"strings"

	"github.com/dylandreimerink/goperf/internal/cstr"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cobra.Command{}

	c.AddCommand(
		testCmd(),
	)

	return c
}

var (
	flagVerbose   bool
	flagCover     bool
	flagCoverMode string
	flagRun       string
	flagKeepTmp   bool
	flagReport    string
	flagNoElevate bool
)

func testCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "test",
		Short: "Build and run unit/integration tests",
		RunE:  buildAndRunTests,
	}

	f := c.Flags()
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "If set, both this command will output verbosely and all called "+
		"commands will be called verbosely as well, thus outputting extra information")
	f.BoolVar(&flagCover, "cover", false, "Enable coverage analysis")
	f.StringVar(&flagCoverMode, "covermode", "set", "Set the mode for coverage analysis for the package[s]"+
		" being tested.")
	f.StringVar(&flagRun, "run", "", "Run only those tests and examples matching the regular expression.")
	f.BoolVar(&flagKeepTmp, "keep-tmp", false, "If set, the temporary directories will not be deleted after the test"+
		"run so intermediate files can be inspected")
	f.StringVar(&flagReport, "report", "", "If set, a HTML report is written to this directory")
	f.BoolVar(&flagNoElevate, "no-elevate", false, "Don't re-execute via sudo, tests which need privileges "+
		"will be skipped")
	return c
}

// A list of packages to be included in the test suite
var packages = []string{
	"github.com/dylandreimerink/goperf",
	"github.com/dylandreimerink/goperf/perfsys",
	"github.com/dylandreimerink/goperf/perftypes",
	"github.com/dylandreimerink/goperf/kernelsupport",
	"github.com/dylandreimerink/goperf/internal/cstr",
	"github.com/dylandreimerink/goperf/internal/syscall",
	"github.com/dylandreimerink/goperf/cmd/testsuite",
}

func printlnVerbose(args ...interface{}) {
	if !flagVerbose {
		return
	}

	fmt.Println(args...)
}

// envName identifies the machine the tests ran on, for example "linux-5.15.5-amd64"
func envName() (string, error) {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	return strings.Join([]string{
		"linux",
		cstr.BytesToString(uname.Release[:]),
		cstr.BytesToString(uname.Machine[:]),
	}, "-"), nil
}

func buildAndRunTests(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// Opening perf counters of other processes and reading tracefs requires root
	if !flagNoElevate {
		err := elevate()
		if err != nil {
			return fmt.Errorf("error while elevating: %w", err)
		}
	}

	env, err := envName()
	if err != nil {
		return err
	}

	printlnVerbose("=== Running tests for", env, "===")

	// example: /tmp/perftestsuite-1099045701
	tmpDir, err := os.MkdirTemp(os.TempDir(), "perftestsuite-*")
	if err != nil {
		return fmt.Errorf("error while making a temporary directory: %w", err)
	}

	printlnVerbose("Using tempdir:", tmpDir)

	// cleanup the temp dir after we are done, unless the user wan't to keep it
	if !flagKeepTmp {
		defer func() {
			printlnVerbose("--- Cleaning up tmp dir ---")
			err := os.RemoveAll(tmpDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error while cleaning up tmp dir '%s': %s", tmpDir, err.Error())
			}
			printlnVerbose("RM:", tmpDir)
		}()
	}

	printlnVerbose("--- Build test binaries ---")

	executables, err := buildTests(tmpDir)
	if err != nil {
		return err
	}

	printlnVerbose("--- Run test binaries ---")

	results := make(map[string]testResult)
	var profiles []string
	failed := false
	for _, exe := range executables {
		pkgResults, profile, err := runTests(tmpDir, exe)
		if err != nil {
			return err
		}

		for name, res := range pkgResults {
			results[name] = res
			if res.Status == statusFail {
				failed = true
			}
		}

		if profile != "" {
			profiles = append(profiles, profile)
		}
	}

	var coverage []fileCoverage
	if flagCover {
		coverage, err = summarizeCoverage(profiles)
		if err != nil {
			return err
		}
	}

	printSummary(cmd.OutOrStdout(), results, coverage)

	if flagReport != "" {
		err = writeReport(flagReport, env, results, coverage, profiles)
		if err != nil {
			return err
		}
	}

	if failed {
		return fmt.Errorf("one or more tests failed")
	}

	return nil
}

func buildTests(tmpDir string) ([]string, error) {
	buildFlags := []string{
		"test",               // invoke the test sub-command
		"-c",                 // Compile the binary, but don't execute it
		"-tags", "perftests", // Include tests that use the perf_event_open syscall
	}

	if flagCover {
		buildFlags = append(buildFlags, "-cover", "-covermode", flagCoverMode)
	}

	executables := make([]string, 0, len(packages))
	for _, pkg := range packages {
		pkgName := strings.Join([]string{path.Base(pkg), "test"}, ".")
		execPath := filepath.Join(tmpDir, pkgName)

		arguments := append(
			buildFlags,
			"-o", execPath, // Output test in the temporary directory
			pkg,
		)

		_, err := execCmd("go", arguments...)
		if err != nil {
			return nil, fmt.Errorf("error while building tests: %w", err)
		}

		// If a package contains no tests, no executable is generated
		if _, err := os.Stat(execPath); err == nil {
			executables = append(executables, pkgName)
		}
	}

	return executables, nil
}

// runTests runs a single test binary and returns the results and the path of the coverage profile, if any.
func runTests(tmpDir, execName string) (map[string]testResult, string, error) {
	args := []string{"-test.v"}

	profile := ""
	if flagCover {
		profile = filepath.Join(tmpDir, execName+".cover")
		args = append(args, "-test.coverprofile", profile)
	}

	if flagRun != "" {
		args = append(args, "-test.run", flagRun)
	}

	printlnVerbose("EXEC:", execName, strings.Join(args, " "))

	var out bytes.Buffer
	testCmd := exec.Command(filepath.Join(tmpDir, execName), args...)
	testCmd.Stdout = &out
	testCmd.Stderr = &out
	// A failing test exits with a non-zero status, the failure shows up in the results
	runErr := testCmd.Run()

	if flagVerbose {
		os.Stdout.Write(out.Bytes())
	}

	results := parseTestOutput(strings.TrimSuffix(execName, ".test"), out.Bytes())
	if runErr != nil && len(results) == 0 {
		return nil, "", fmt.Errorf("error while running %s: %w\n%s", execName, runErr, out.String())
	}

	return results, profile, nil
}

func execCmd(name string, args ...string) ([]byte, error) {
	printlnVerbose(strings.Join(append([]string{"EXEC:", name}, args...), " "))

	cmd := exec.Command(name, args...)
	output, err := cmd.Output()
	if err != nil {
		fmt.Fprintln(os.Stderr, string(output))
		if ee, ok := err.(*exec.ExitError); ok {
			fmt.Fprintln(os.Stderr, string(ee.Stderr))
		}
		return nil, err
	}

	return output, nil
}

// elevate checks if we are currently running as root, if not we will request the user to elevate the program
func elevate() error {
	curUser, err := user.Current()
	if err != nil {
		return fmt.Errorf("error while getting user: %w", err)
	}

	// If we are user 0(root), we don't need to elevate
	if curUser.Uid == "0" {
		return nil
	}

	fmt.Println("This testsuit requires root privileges, attempting to elevate via sudo...")

	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return fmt.Errorf("find sudo: %w", err)
	}

	// Elevate to root by execve'ing sudo with the current args. This should prompt the user for their sudo password
	// and then continue executing this program(again from the start, since this process will be replaced)
	// NOTE: The `--preserve-env=PATH` will make sure that the current PATH is preserved which is important since most
	// users will not have setup root with the correct go environment variables.
	err = unix.Exec(sudo, append([]string{"sudo", "--preserve-env=PATH"}, os.Args...), os.Environ())
	if err != nil {
		return fmt.Errorf("error execve'ing into sudo: %w", err)
	}

	return nil
}
