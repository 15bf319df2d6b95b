package pyenv

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/matzehuels/stanza/pkg/errors"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		output string
		want   string
		ok     bool
	}{
		{"Python 3.11.4\n", "3.11.4", true},
		{"Python 2.7.18", "2.7.18", true},
		{"Python 3.13.0rc1", "3.13.0", true},
		{"command not found", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseVersion(tt.output)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseVersion(%q) = %q, %v; want %q, %v", tt.output, got, ok, tt.want, tt.ok)
		}
	}
}

// script writes an executable shell script that prints its arguments and
// exits with code.
func script(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPythonVersion(t *testing.T) {
	// Python 2 reports its version on stderr.
	py := NewPython(script(t, `echo "Python 2.7.18" >&2`), nil)
	v, err := py.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error: %v", err)
	}
	if v != "2.7.18" {
		t.Errorf("Version() = %q, want 2.7.18", v)
	}
}

func TestPipArguments(t *testing.T) {
	log := filepath.Join(t.TempDir(), "args")
	pip := NewPip(script(t, `echo "$@" >> `+log), nil)
	ctx := context.Background()

	if err := pip.Install(ctx, "requests==2.13.0", false); err != nil {
		t.Fatal(err)
	}
	if err := pip.Install(ctx, "pendulum==1.3.0", true); err != nil {
		t.Fatal(err)
	}
	if err := pip.Uninstall(ctx, "pendulum==1.2.0"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"install requests==2.13.0",
		"install pendulum==1.3.0 -U",
		"uninstall pendulum==1.2.0 -y",
	}
	if got := strings.Split(strings.TrimSpace(string(data)), "\n"); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("pip calls = %q, want %q", got, want)
	}
}

func TestRunFailureCapturesOutput(t *testing.T) {
	cmd := &Command{Path: script(t, "echo 'No matching distribution found' >&2; exit 3")}
	_, err := cmd.Run(context.Background(), "install", "nope")

	var outErr *errors.OutputError
	if !stderrors.As(err, &outErr) {
		t.Fatalf("Run() error = %T, want *errors.OutputError", err)
	}
	if outErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", outErr.ExitCode)
	}
	if !strings.Contains(outErr.Output, "No matching distribution found") {
		t.Errorf("Output = %q", outErr.Output)
	}
}

func TestRunMissingExecutable(t *testing.T) {
	cmd := &Command{Path: filepath.Join(t.TempDir(), "missing")}
	_, err := cmd.Run(context.Background())

	var outErr *errors.OutputError
	if !stderrors.As(err, &outErr) {
		t.Fatalf("Run() error = %T, want *errors.OutputError", err)
	}
	if outErr.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", outErr.ExitCode)
	}
}
