package plugin

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotInstalled     = errors.New("plugin is not installed")
	ErrAlreadyInstalled = errors.New("plugin is already installed")
	ErrInvalidProject   = errors.New("invalid project name")
	ErrNotAPlugin       = errors.New("package is not a Terminus plugin")
	// ErrAmbiguousProject is returned by Find when a short name matches more than one plugin.
	ErrAmbiguousProject = errors.New("name matches more than one installed plugin")
	// ErrComposerMissing is returned by CheckRequirements when composer cannot be found.
	ErrComposerMissing = errors.New("Please install composer to enable plugin management.")
)

// SubprocessError reports a composer invocation that exited non-zero.
type SubprocessError struct {
	Message  string
	Args     []string
	ExitCode int
	Output   string
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s (composer %s exited with code %d)", e.Message, strings.Join(e.Args, " "), e.ExitCode)
}
