package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
)

const sample = `
[package]
name = "my-package"
version = "0.1.0"
authors = ["Jane Doe <jane@example.com>"]
readme = "README.rst"
python = ["~2.7", "^3.4"]

[dependencies]
requests = "^2.13"
Pendulum = { git = "https://github.com/sdispater/pendulum.git", branch = "develop", optional = true }
enum34 = { version = "^1.1", python = "~2.7" }

[dev-dependencies]
pytest = "^3.5"

[features]
time = ["pendulum"]

[scripts]
my-script = "my_package:main"
`

func writeProject(t *testing.T, manifest string, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("readme"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeProject(t, sample, "README.rst")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Name() != "my-package" || m.Version() != "0.1.0" || m.IsLock() {
		t.Errorf("project = %s %s lock=%v", m.Name(), m.Version(), m.IsLock())
	}
	if want := filepath.Join(filepath.Dir(path), "poetry.lock"); m.LockFile() != want {
		t.Errorf("LockFile() = %s, want %s", m.LockFile(), want)
	}
	if want := []string{"~2.7", "^3.4"}; !reflect.DeepEqual(m.Metadata.Python, want) {
		t.Errorf("Python = %v, want %v", m.Metadata.Python, want)
	}
	if m.Scripts["my-script"] != "my_package:main" {
		t.Errorf("Scripts = %v", m.Scripts)
	}

	var names []string
	for _, d := range m.Dependencies(true) {
		names = append(names, d.Name)
	}
	if want := []string{"Pendulum", "enum34", "requests", "pytest"}; !reflect.DeepEqual(names, want) {
		t.Errorf("dependencies = %v, want %v", names, want)
	}
	if n := len(m.Dependencies(false)); n != 3 {
		t.Errorf("main dependencies = %d, want 3", n)
	}

	declared := m.Dependencies(true)
	if !declared[0].IsVCS() || !declared[0].Optional {
		t.Errorf("Pendulum = %+v, want optional VCS", declared[0])
	}
	if want := []string{"~2.7"}; !reflect.DeepEqual(declared[1].Python, want) {
		t.Errorf("enum34 python = %v, want %v", declared[1].Python, want)
	}
	if declared[3].Category != deps.Dev {
		t.Errorf("pytest category = %v, want dev", declared[3].Category)
	}

	if err := m.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		code     errors.Code
	}{
		{"no package", "[dependencies]\nrequests = \"*\"\n", errors.ErrCodeMissingElement},
		{"bad constraint", "[package]\nname = \"x\"\nversion = \"1.0\"\n[dependencies]\nrequests = \"^^2\"\n", errors.ErrCodeInvalidConstraint},
		{"git without ref", "[package]\nname = \"x\"\nversion = \"1.0\"\n[dependencies]\npendulum = { git = \"https://github.com/sdispater/pendulum.git\" }\n", errors.ErrCodeInvalidElement},
		{"not toml", "[package\n", errors.ErrCodeInvalidElement},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProject(t, tt.manifest))
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	base := "[package]\nname = \"x\"\nversion = \"1.0\"\n"
	tests := []struct {
		name     string
		manifest string
		files    []string
		msg      string
	}{
		{"missing authors", base + "readme = \"README.rst\"\n", []string{"README.rst"}, "The poetry.toml file is missing the [package.authors] element"},
		{"authors not a list", base + "authors = \"Jane\"\nreadme = \"README.rst\"\n", []string{"README.rst"}, "The element [package.authors] is invalid (it must be a list)"},
		{"missing readme", base + "authors = [\"Jane\"]\n", nil, "The poetry.toml file is missing the [package.readme] element"},
		{"readme not found", base + "authors = [\"Jane\"]\nreadme = \"README.rst\"\n", nil, "The element [package.readme] is invalid (invalid path provided)"},
		{"readme extension", base + "authors = [\"Jane\"]\nreadme = \"README.doc\"\n", []string{"README.doc"}, "The element [package.readme] is invalid (extension [.doc] is not supported)"},
		{
			"unknown feature package",
			base + "authors = [\"Jane\"]\nreadme = \"README.md\"\n[features]\nextra = [\"missing\"]\n",
			[]string{"README.md"},
			"The element [features.extra] is invalid (package [missing] is not a declared dependency)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeProject(t, tt.manifest, tt.files...))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = m.Check()
			if err == nil {
				t.Fatal("Check succeeded")
			}
			if got := errors.UserMessage(err); got != tt.msg {
				t.Errorf("message = %q, want %q", got, tt.msg)
			}
		})
	}
}
