// Package pyenv runs the Python interpreter and the pip installer as
// external processes.
package pyenv

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stanza/pkg/errors"
)

var versionRE = regexp.MustCompile(`Python ([\d.]+)`)

// Command runs one executable and captures its combined output.
type Command struct {
	Path   string      // Executable name or path
	Dir    string      // Working directory, empty for the current one
	Env    []string    // Extra KEY=VALUE pairs appended to the environment
	Logger *log.Logger // Receives the command line and output at Debug
}

// Run executes the command with args and returns its combined stdout and
// stderr. A failed run returns an *[errors.OutputError] with the output.
func (c *Command) Run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Path, args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(cmd.Environ(), c.Env...)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	line := strings.Join(append([]string{c.Path}, args...), " ")
	c.logger().Debug("exec", "cmd", line)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return out.String(), ctx.Err()
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return out.String(), &errors.OutputError{Command: line, ExitCode: exitCode, Output: out.String(), Err: err}
	}
	if out.Len() > 0 {
		c.logger().Debug("output", "cmd", c.Path, "text", strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

func (c *Command) logger() *log.Logger {
	if c.Logger == nil {
		return log.New(io.Discard)
	}
	return c.Logger
}

// Python probes the interpreter packages are installed for.
type Python struct {
	Command
}

// NewPython creates an interpreter probe for the executable at path.
func NewPython(path string, logger *log.Logger) *Python {
	return &Python{Command{Path: path, Logger: logger}}
}

// Version runs "python -V" and returns the reported version, e.g. "3.11.4".
func (p *Python) Version(ctx context.Context) (string, error) {
	out, err := p.Run(ctx, "-V")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "Unable to determine the Python version")
	}
	v, ok := ParseVersion(out)
	if !ok {
		return "", errors.New(errors.ErrCodeInternal, "Unable to determine the Python version from %q", strings.TrimSpace(out))
	}
	return v, nil
}

// ParseVersion extracts the version from "python -V" output.
func ParseVersion(output string) (string, bool) {
	m := versionRE.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return strings.TrimRight(m[1], "."), true
}

// Pip installs and removes packages.
type Pip struct {
	Command
}

// NewPip creates an installer for the pip executable at path.
func NewPip(path string, logger *log.Logger) *Pip {
	return &Pip{Command{Path: path, Logger: logger}}
}

// Install runs "pip install <spec>", adding -U when upgrade is set.
func (p *Pip) Install(ctx context.Context, spec string, upgrade bool) error {
	args := []string{"install", spec}
	if upgrade {
		args = append(args, "-U")
	}
	_, err := p.Run(ctx, args...)
	return err
}

// Uninstall runs "pip uninstall <spec> -y".
func (p *Pip) Uninstall(ctx context.Context, spec string) error {
	_, err := p.Run(ctx, "uninstall", spec, "-y")
	return err
}
