package installer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/stanza/pkg/deps"
	"github.com/matzehuels/stanza/pkg/errors"
	"github.com/matzehuels/stanza/pkg/lock"
	"github.com/matzehuels/stanza/pkg/manifest"
	"github.com/matzehuels/stanza/pkg/resolve"
)

type fakeResolver struct {
	packages []deps.Package
	declared []string
}

func (f *fakeResolver) Resolve(_ context.Context, declared []*deps.Dependency) (*resolve.Resolution, error) {
	f.declared = nil
	for _, d := range declared {
		f.declared = append(f.declared, d.Name)
	}
	return &resolve.Resolution{Packages: slices.Clone(f.packages)}, nil
}

type fakePip struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakePip) record(call, spec string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.fail[spec] {
		return &errors.OutputError{Command: "pip " + call, ExitCode: 1, Output: "boom"}
	}
	return nil
}

func (f *fakePip) Install(_ context.Context, spec string, upgrade bool) error {
	call := "install " + spec
	if upgrade {
		call += " -U"
	}
	return f.record(call, spec)
}

func (f *fakePip) Uninstall(_ context.Context, spec string) error {
	return f.record("uninstall "+spec+" -y", spec)
}

type fakePython string

func (f fakePython) Version(context.Context) (string, error) { return string(f), nil }

func registry(name, version string, category deps.Category) deps.Package {
	return deps.Package{
		Name:     name,
		Pin:      deps.Registry{Version: version},
		Checksum: []string{"sha256:" + name + version},
		Category: category,
		Python:   []string{"*"},
	}
}

const baseManifest = `
[package]
name = "my-package"
version = "0.1.0"
authors = ["Jane Doe"]
readme = "README.rst"
`

func newProject(t *testing.T, body string) *manifest.Manifest {
	t.Helper()
	path := filepath.Join(t.TempDir(), manifest.FileName)
	if err := os.WriteFile(path, []byte(baseManifest+body), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(path)
	if err != nil {
		t.Fatalf("manifest.Load: %v", err)
	}
	return m
}

func writeLock(t *testing.T, path string, pkgs []deps.Package, features map[string][]string) {
	t.Helper()
	doc := &lock.Document{Root: lock.Root{Name: "my-package", Version: "0.1.0"}, Packages: pkgs, Features: features}
	if err := lock.Write(path, doc); err != nil {
		t.Fatal(err)
	}
}

func newInstaller(p Project, r *fakeResolver, pip *fakePip) (*Installer, *bytes.Buffer) {
	var out bytes.Buffer
	i := New(p, r, pip, fakePython("3.6.0"))
	i.Out = &out
	return i, &out
}

func TestLock(t *testing.T) {
	p := newProject(t, `
[dependencies]
requests = "^2.13.0"
Pendulum = { version = "^1.4", optional = true }

[dev-dependencies]
pytest = "^3.0.0"

[features]
Time_Zones = ["Pendulum"]
`)
	r := &fakeResolver{packages: []deps.Package{
		registry("pendulum", "1.4.4", deps.Main),
		registry("pytest", "3.5.0", deps.Dev),
		registry("requests", "2.13.0", deps.Main),
	}}
	i, out := newInstaller(p, r, &fakePip{})

	if err := i.Lock(context.Background(), true); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if want := []string{"Pendulum", "requests", "pytest"}; !reflect.DeepEqual(r.declared, want) {
		t.Errorf("declared = %v, want %v", r.declared, want)
	}

	doc, err := lock.Read(p.LockFile())
	if err != nil {
		t.Fatalf("lock.Read: %v", err)
	}
	if doc.Root != (lock.Root{Name: "my-package", Version: "0.1.0"}) {
		t.Errorf("Root = %+v", doc.Root)
	}
	if len(doc.Packages) != 3 {
		t.Errorf("packages = %d, want 3", len(doc.Packages))
	}
	if want := map[string][]string{"time-zones": {"pendulum"}}; !reflect.DeepEqual(doc.Features, want) {
		t.Errorf("Features = %v, want %v", doc.Features, want)
	}
	if !strings.Contains(out.String(), "Locking dependencies to poetry.lock") {
		t.Errorf("output missing header:\n%s", out)
	}
}

func TestLockNoopForLockProject(t *testing.T) {
	path := filepath.Join(t.TempDir(), lock.FileName)
	writeLock(t, path, []deps.Package{registry("requests", "2.13.0", deps.Main)}, nil)
	p, err := lock.OpenProject(path)
	if err != nil {
		t.Fatal(err)
	}
	r := &fakeResolver{}
	i, _ := newInstaller(p, r, &fakePip{})
	if err := i.Lock(context.Background(), true); err != nil {
		t.Fatal(err)
	}
	if r.declared != nil {
		t.Errorf("resolver called for a lock-backed project")
	}
}

func TestInstallLocksFirst(t *testing.T) {
	p := newProject(t, "[dependencies]\nrequests = \"^2.13.0\"\n[dev-dependencies]\npytest = \"^3.0.0\"\n")
	r := &fakeResolver{packages: []deps.Package{
		registry("pytest", "3.5.0", deps.Dev),
		registry("requests", "2.13.0", deps.Main),
	}}
	pip := &fakePip{}
	i, out := newInstaller(p, r, pip)

	if err := i.Install(context.Background(), nil, true); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !lock.Exists(p.LockFile()) {
		t.Fatal("lock file not written")
	}
	if want := []string{"install requests==2.13.0", "install pytest==3.5.0"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
	for _, want := range []string{"Installing dependencies", " - Installing requests (2.13.0)", " - Installing pytest (3.5.0)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	pip.calls = nil
	if err := i.Install(context.Background(), nil, false); err != nil {
		t.Fatal(err)
	}
	if want := []string{"install requests==2.13.0"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls without dev = %v, want %v", pip.calls, want)
	}
}

func TestInstallUnknownFeature(t *testing.T) {
	p := newProject(t, "[dependencies]\nrequests = \"*\"\n[features]\nsecurity = [\"requests\"]\n")
	r := &fakeResolver{packages: []deps.Package{registry("requests", "2.13.0", deps.Main)}}
	i, _ := newInstaller(p, r, &fakePip{})

	err := i.Install(context.Background(), []string{"nope"}, true)
	if !errors.Is(err, errors.ErrCodeUnknownFeature) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeUnknownFeature)
	}
	if got := errors.UserMessage(err); got != "Feature [nope] does not exist" {
		t.Errorf("message = %q", got)
	}
	if lock.Exists(p.LockFile()) {
		t.Error("lock written despite unknown feature")
	}

	writeLock(t, p.LockFile(), r.packages, map[string][]string{"security": {"requests"}})
	if err := i.Install(context.Background(), []string{"other"}, true); !errors.Is(err, errors.ErrCodeUnknownFeature) {
		t.Errorf("error with lock = %v, want %s", err, errors.ErrCodeUnknownFeature)
	}
}

func TestLockDropsUnlockedFeatureMembers(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		dev      bool
		feature  string
	}{
		{
			name:     "dev package without dev",
			manifest: "[dependencies]\nrequests = \"*\"\n[dev-dependencies]\npytest = { version = \"^3.5\", optional = true }\n[features]\ntesting = [\"pytest\"]\n",
			feature:  "testing",
		},
		{
			name:     "unsafe package",
			manifest: "[dependencies]\nrequests = \"*\"\nsetuptools = { version = \"*\", optional = true }\n[features]\nbuild = [\"setuptools\", \"requests\"]\n",
			dev:      true,
			feature:  "build",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProject(t, tt.manifest)
			r := &fakeResolver{packages: []deps.Package{registry("requests", "2.13.0", deps.Main)}}
			pip := &fakePip{}
			i, _ := newInstaller(p, r, pip)

			if err := i.Install(context.Background(), nil, tt.dev); err != nil {
				t.Fatalf("Install: %v", err)
			}
			doc, err := lock.Read(p.LockFile())
			if err != nil {
				t.Fatalf("lock.Read: %v", err)
			}
			members, ok := doc.Features[tt.feature]
			if !ok {
				t.Fatalf("feature %q missing from lock: %v", tt.feature, doc.Features)
			}
			for _, m := range members {
				if m != "requests" {
					t.Errorf("feature %q keeps unlocked member %q", tt.feature, m)
				}
			}

			pip.calls = nil
			if err := i.Install(context.Background(), []string{tt.feature}, tt.dev); err != nil {
				t.Errorf("second Install: %v", err)
			}
		})
	}
}

func TestLockRejectsUndeclaredFeatureMember(t *testing.T) {
	p := newProject(t, "[dependencies]\nrequests = \"*\"\n[features]\nextra = [\"missing\"]\n")
	r := &fakeResolver{packages: []deps.Package{registry("requests", "2.13.0", deps.Main)}}
	i, _ := newInstaller(p, r, &fakePip{})

	err := i.Lock(context.Background(), true)
	if !errors.Is(err, errors.ErrCodeInvalidElement) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeInvalidElement)
	}
	if want := "The element [features.extra] is invalid (package [missing] is not a declared dependency)"; errors.UserMessage(err) != want {
		t.Errorf("message = %q, want %q", errors.UserMessage(err), want)
	}
	if r.declared != nil {
		t.Error("resolver called despite invalid feature")
	}
	if lock.Exists(p.LockFile()) {
		t.Error("lock written despite invalid feature")
	}
}

func TestInstallFiltersOptionalAndPython(t *testing.T) {
	p := newProject(t, "")
	vcs := deps.Package{
		Name:     "pendulum",
		Pin:      deps.VCS{Git: "https://github.com/sdispater/pendulum.git", Rev: "abc"},
		Checksum: []string{"sha1:abc"},
		Category: deps.Main,
		Optional: true,
		Python:   []string{"*"},
	}
	enum := registry("enum34", "1.1.6", deps.Main)
	enum.Python = []string{"~2.7"}
	typing := registry("typing", "3.6.4", deps.Main)
	typing.Python = []string{"~2.7", "^3.4"}
	writeLock(t, p.LockFile(), []deps.Package{vcs, enum, typing, registry("requests", "2.13.0", deps.Main)},
		map[string][]string{"time": {"pendulum"}})

	pip := &fakePip{}
	i, out := newInstaller(p, &fakeResolver{}, pip)
	i.Verbose = true

	if err := i.Install(context.Background(), nil, true); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if want := []string{"install requests==2.13.0", "install typing==3.6.4"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
	if want := " - Skipping enum34 (Specifies Python ~2.7 and current Python is 3.6.0)"; !strings.Contains(out.String(), want) {
		t.Errorf("output missing %q:\n%s", want, out)
	}

	pip.calls = nil
	if err := i.Install(context.Background(), []string{"time"}, true); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"install git+https://github.com/sdispater/pendulum.git@abc#egg=pendulum -U",
		"install requests==2.13.0",
		"install typing==3.6.4",
	}
	if !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls with feature = %v, want %v", pip.calls, want)
	}
}

func TestInstallStopsOnFailure(t *testing.T) {
	p := newProject(t, "")
	writeLock(t, p.LockFile(), []deps.Package{
		registry("attrs", "17.4.0", deps.Main),
		registry("requests", "2.13.0", deps.Main),
		registry("six", "1.11.0", deps.Main),
	}, nil)

	pip := &fakePip{fail: map[string]bool{"requests==2.13.0": true}}
	i, _ := newInstaller(p, &fakeResolver{}, pip)

	err := i.Install(context.Background(), nil, true)
	if !errors.Is(err, errors.ErrCodeInstallation) {
		t.Fatalf("error = %v, want %s", err, errors.ErrCodeInstallation)
	}
	if got := errors.UserMessage(err); got != "Error while installing [requests]" {
		t.Errorf("message = %q", got)
	}
	var out *errors.OutputError
	if !stderrors.As(err, &out) || out.Output != "boom" {
		t.Errorf("error does not carry the installer output: %v", err)
	}
	if want := []string{"install attrs==17.4.0", "install requests==2.13.0"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
}

func TestInstallParallel(t *testing.T) {
	p := newProject(t, "")
	var pkgs []deps.Package
	for n := range 10 {
		pkgs = append(pkgs, registry(fmt.Sprintf("pkg%02d", n), "1.0", deps.Main))
	}
	writeLock(t, p.LockFile(), pkgs, nil)

	pip := &fakePip{}
	i, out := newInstaller(p, &fakeResolver{}, pip)
	i.Jobs = 4
	if err := i.Install(context.Background(), nil, true); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(pip.calls) != 10 {
		t.Errorf("pip calls = %d, want 10", len(pip.calls))
	}
	if n := strings.Count(out.String(), " - Installing "); n != 10 {
		t.Errorf("progress lines = %d, want 10", n)
	}

	pip = &fakePip{fail: map[string]bool{"pkg03==1.0": true}}
	i, _ = newInstaller(p, &fakeResolver{}, pip)
	i.Jobs = 4
	if err := i.Install(context.Background(), nil, true); !errors.Is(err, errors.ErrCodeInstallation) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodeInstallation)
	}
}

func TestUpdateRejections(t *testing.T) {
	path := filepath.Join(t.TempDir(), lock.FileName)
	writeLock(t, path, []deps.Package{registry("requests", "2.13.0", deps.Main)}, nil)
	lp, err := lock.OpenProject(path)
	if err != nil {
		t.Fatal(err)
	}
	i, _ := newInstaller(lp, &fakeResolver{}, &fakePip{})
	err = i.Update(context.Background(), nil, nil, true)
	if !errors.Is(err, errors.ErrCodeUpdateNotAllowed) {
		t.Errorf("lock project error = %v, want %s", err, errors.ErrCodeUpdateNotAllowed)
	}

	mp := newProject(t, "[dependencies]\nrequests = \"*\"\n[features]\nsec = [\"requests\"]\n")
	i, _ = newInstaller(mp, &fakeResolver{}, &fakePip{})
	err = i.Update(context.Background(), []string{"requests"}, []string{"sec"}, true)
	if !errors.Is(err, errors.ErrCodeMutuallyExclusiveRequest) {
		t.Errorf("scoped error = %v, want %s", err, errors.ErrCodeMutuallyExclusiveRequest)
	}
	if got := errors.UserMessage(err); got != "Cannot specify packages and features when updating." {
		t.Errorf("message = %q", got)
	}
}

func updateFixture(t *testing.T) (*manifest.Manifest, *fakeResolver) {
	t.Helper()
	p := newProject(t, "[dependencies]\nfoo = \"^1.2\"\nbaz = \"^2.3\"\n")
	writeLock(t, p.LockFile(), []deps.Package{
		registry("foo", "1.2.3", deps.Main),
		registry("bar", "3.2.1", deps.Main),
	}, nil)
	return p, &fakeResolver{packages: []deps.Package{
		registry("foo", "1.3.3", deps.Main),
		registry("baz", "2.3.3", deps.Main),
	}}
}

func lockedVersions(t *testing.T, path string) map[string]string {
	t.Helper()
	doc, err := lock.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	out := make(map[string]string)
	for _, p := range doc.Packages {
		out[p.Name] = p.Version()
	}
	return out
}

func TestUpdate(t *testing.T) {
	p, r := updateFixture(t)
	pip := &fakePip{}
	i, out := newInstaller(p, r, pip)

	if err := i.Update(context.Background(), nil, nil, true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	want := []string{"install foo==1.3.3 -U", "install baz==2.3.3", "uninstall bar -y"}
	if !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
	for _, line := range []string{
		" - Summary: 1 update, 1 installation, 1 uninstallation",
		" - Updating foo (1.2.3 -> 1.3.3)",
		" - Installing baz (2.3.3)",
		" - Removing bar (3.2.1)",
	} {
		if !strings.Contains(out.String(), line) {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
	if got, want := lockedVersions(t, p.LockFile()), map[string]string{"foo": "1.3.3", "baz": "2.3.3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("locked = %v, want %v", got, want)
	}
}

func TestUpdateScoped(t *testing.T) {
	p, r := updateFixture(t)
	pip := &fakePip{}
	i, _ := newInstaller(p, r, pip)

	if err := i.Update(context.Background(), []string{"FOO"}, nil, true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if want := []string{"install foo==1.3.3 -U"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
	if got, want := lockedVersions(t, p.LockFile()), map[string]string{"foo": "1.3.3", "bar": "3.2.1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("locked = %v, want %v", got, want)
	}
}

func TestUpdateUpToDate(t *testing.T) {
	p := newProject(t, "[dependencies]\nfoo = \"^1.2\"\n")
	pkgs := []deps.Package{registry("foo", "1.3.3", deps.Main)}
	writeLock(t, p.LockFile(), pkgs, nil)
	before, err := os.ReadFile(p.LockFile())
	if err != nil {
		t.Fatal(err)
	}

	pip := &fakePip{}
	i, out := newInstaller(p, &fakeResolver{packages: pkgs}, pip)
	if err := i.Update(context.Background(), nil, nil, true); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !strings.Contains(out.String(), " - Dependencies already up-to-date!") {
		t.Errorf("output:\n%s", out)
	}
	if len(pip.calls) != 0 {
		t.Errorf("pip calls = %v, want none", pip.calls)
	}
	after, _ := os.ReadFile(p.LockFile())
	if !bytes.Equal(before, after) {
		t.Error("lock file rewritten")
	}
}

func TestUpdateFailureKeepsLock(t *testing.T) {
	p, r := updateFixture(t)
	before, err := os.ReadFile(p.LockFile())
	if err != nil {
		t.Fatal(err)
	}
	pip := &fakePip{fail: map[string]bool{"baz==2.3.3": true}}
	i, _ := newInstaller(p, r, pip)

	err = i.Update(context.Background(), nil, nil, true)
	if got := errors.UserMessage(err); got != "Error while installing [baz]" {
		t.Errorf("message = %q", got)
	}
	after, _ := os.ReadFile(p.LockFile())
	if !bytes.Equal(before, after) {
		t.Error("lock file rewritten after a failed update")
	}
}

func TestUpdateWithoutDevKeepsDevPackages(t *testing.T) {
	p := newProject(t, "[dependencies]\nfoo = \"^1.2\"\n[dev-dependencies]\npytest = \"^3.0\"\n")
	writeLock(t, p.LockFile(), []deps.Package{
		registry("foo", "1.2.3", deps.Main),
		registry("pytest", "3.5.0", deps.Dev),
	}, nil)
	r := &fakeResolver{packages: []deps.Package{registry("foo", "1.3.3", deps.Main)}}
	pip := &fakePip{}
	i, _ := newInstaller(p, r, pip)

	if err := i.Update(context.Background(), nil, nil, false); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if want := []string{"install foo==1.3.3 -U"}; !reflect.DeepEqual(pip.calls, want) {
		t.Errorf("pip calls = %v, want %v", pip.calls, want)
	}
	if got, want := lockedVersions(t, p.LockFile()), map[string]string{"foo": "1.3.3", "pytest": "3.5.0"}; !reflect.DeepEqual(got, want) {
		t.Errorf("locked = %v, want %v", got, want)
	}
}

func TestRequirements(t *testing.T) {
	p := newProject(t, "")
	writeLock(t, p.LockFile(), []deps.Package{
		registry("requests", "2.13.0", deps.Main),
		{Name: "pendulum", Pin: deps.VCS{Git: "https://github.com/sdispater/pendulum.git", Rev: "abc"}, Category: deps.Main, Python: []string{"*"}},
		registry("pytest", "3.5.0", deps.Dev),
	}, nil)
	i, _ := newInstaller(p, &fakeResolver{}, &fakePip{})

	lines, err := i.Requirements(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"-e git+https://github.com/sdispater/pendulum.git@abc#egg=pendulum",
		"requests==2.13.0",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("Requirements = %v, want %v", lines, want)
	}
}
