package cli

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	stanzaerrors "github.com/matzehuels/stanza/pkg/errors"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := []string{"cache", "check", "completion", "graph", "install", "lock", "requirements", "update"}
	var got []string
	for _, cmd := range root.Commands() {
		got = append(got, cmd.Name())
	}
	for _, name := range want {
		found := false
		for _, g := range got {
			if g == name {
				found = true
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered, have %v", name, got)
		}
	}

	for _, flag := range []string{"manifest", "no-cache", "jobs", "no-progress"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("persistent flag --%s not registered", flag)
		}
	}
}

func TestSplitFeatures(t *testing.T) {
	got := splitFeatures([]string{"Mysql_Driver pgsql", "extra"})
	want := []string{"mysql-driver", "pgsql", "extra"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("splitFeatures() = %v, want %v", got, want)
	}
}

func TestReportError(t *testing.T) {
	cause := &stanzaerrors.OutputError{Command: "pip install requests==2.13.0", ExitCode: 1, Output: "Could not find a version\n"}
	err := stanzaerrors.Wrap(stanzaerrors.ErrCodeInstallation, cause, "Error while installing [requests]")

	var buf bytes.Buffer
	ReportError(&buf, err)

	out := buf.String()
	for _, want := range []string{"Error while installing [requests]", "exit status 1", "Could not find a version"} {
		if !strings.Contains(out, want) {
			t.Errorf("ReportError output %q missing %q", out, want)
		}
	}

	buf.Reset()
	ReportError(&buf, errors.New("plain failure"))
	if !strings.Contains(buf.String(), "plain failure") {
		t.Errorf("ReportError output = %q, want plain failure", buf.String())
	}
}
