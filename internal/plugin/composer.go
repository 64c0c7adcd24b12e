package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	hversion "github.com/hashicorp/go-version"
	"terminus/internal/util"
)

// MinComposerVersion is the oldest composer release plugin management supports.
const MinComposerVersion = "2.0.0"

var composerVersionPattern = regexp.MustCompile(`(\d+\.\d+\.\d+)`)

// Result is the outcome of one composer invocation. Only ExitCode is interpreted.
type Result struct {
	Args     []string
	ExitCode int
	Output   string
}

// Runner invokes composer. A non-zero exit is reported through Result.ExitCode; the error
// return is reserved for failing to run the binary at all.
type Runner interface {
	Run(ctx context.Context, args ...string) (*Result, error)
}

// ExecRunner runs the composer binary as a subprocess.
type ExecRunner struct {
	Binary string
}

func NewExecRunner(binary string) *ExecRunner {
	if binary == "" {
		binary = "composer"
	}
	return &ExecRunner{Binary: binary}
}

func (r *ExecRunner) Run(ctx context.Context, args ...string) (*Result, error) {
	util.Log.Debugf("Running: %s %s", r.Binary, strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.Env = append(cmd.Environ(), "COMPOSER_NO_INTERACTION=1")

	err := cmd.Run()
	result := &Result{Args: args, Output: output.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			util.Log.Debugf("%s %s exited with code %d: %s", r.Binary, strings.Join(args, " "), result.ExitCode, strings.TrimSpace(result.Output))
			return result, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", r.Binary, err)
	}
	util.Log.Debugf("%s %s finished: %s", r.Binary, strings.Join(args, " "), strings.TrimSpace(result.Output))
	return result, nil
}

// ParseComposerVersion extracts the semantic version from `composer --version` output.
func ParseComposerVersion(output string) (*hversion.Version, error) {
	match := composerVersionPattern.FindString(output)
	if match == "" {
		return nil, fmt.Errorf("could not find a version in composer output %q", strings.TrimSpace(output))
	}
	v, err := hversion.NewVersion(match)
	if err != nil {
		return nil, fmt.Errorf("invalid composer version '%s': %w", match, err)
	}
	return v, nil
}

// checkComposer verifies binary is on PATH and new enough.
func checkComposer(ctx context.Context, runner Runner, binary string, lookPath func(string) (string, error)) error {
	path, err := lookPath(binary)
	if err != nil {
		util.Log.Debugf("composer binary '%s' not found: %v", binary, err)
		return ErrComposerMissing
	}
	util.Log.Debugf("Using composer at %s", path)

	res, err := runner.Run(ctx, "--version", "--no-ansi")
	if err != nil {
		return fmt.Errorf("failed to determine composer version: %w", err)
	}
	if res.ExitCode != 0 {
		return &SubprocessError{Message: "Could not determine the composer version.", Args: res.Args, ExitCode: res.ExitCode, Output: res.Output}
	}

	current, err := ParseComposerVersion(res.Output)
	if err != nil {
		return err
	}
	minimum := hversion.Must(hversion.NewVersion(MinComposerVersion))
	if current.LessThan(minimum) {
		return fmt.Errorf("composer %s is not supported; please upgrade to composer %s or later to enable plugin management", current, MinComposerVersion)
	}
	return nil
}
