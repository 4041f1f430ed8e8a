// SPDX-License-Identifier: MPL-2.0

package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/archive"
	"github.com/banderole/banderole/pkg/platform"
)

func testManifest() *archive.Manifest {
	return &archive.Manifest{
		Version:     archive.ManifestVersion,
		AppName:     "demo",
		NodeVersion: "22.17.1",
		EntryScript: "index.js",
	}
}

// makeEntry lays out a fake complete cache entry on disk.
func makeEntry(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	nodePath := filepath.Join(dir, "node", filepath.FromSlash(platform.Current().NodeExecutable()))
	if err := os.MkdirAll(filepath.Dir(nodePath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(nodePath, []byte("fake node"), 0o755); err != nil {
		t.Fatal(err)
	}

	script := filepath.Join(dir, "app", "index.js")
	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(script, []byte("console.log('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestNewLaunchSpec(t *testing.T) {
	t.Parallel()

	dir := makeEntry(t)
	args := []string{"--flag", "value"}

	spec, err := NewLaunchSpec(dir, testManifest(), args)
	if err != nil {
		t.Fatalf("NewLaunchSpec: %v", err)
	}

	if spec.WorkDir != filepath.Join(dir, "app") {
		t.Errorf("WorkDir = %q", spec.WorkDir)
	}
	if spec.ScriptPath != filepath.Join(dir, "app", "index.js") {
		t.Errorf("ScriptPath = %q", spec.ScriptPath)
	}
	if !slices.Equal(spec.Args, args) {
		t.Errorf("Args = %v, want %v", spec.Args, args)
	}
	if !slices.Contains(spec.Env, BundleEnvVar+"=1") {
		t.Errorf("Env is missing %s=1", BundleEnvVar)
	}

	argv := spec.argv()
	want := []string{spec.NodePath, spec.ScriptPath, "--flag", "value"}
	if !slices.Equal(argv, want) {
		t.Errorf("argv = %v, want %v", argv, want)
	}
}

func TestNewLaunchSpec_MissingNode(t *testing.T) {
	t.Parallel()

	dir := makeEntry(t)
	if err := os.RemoveAll(filepath.Join(dir, "node")); err != nil {
		t.Fatal(err)
	}

	_, err := NewLaunchSpec(dir, testManifest(), nil)
	if !errors.Is(err, issue.ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}

func TestNewLaunchSpec_MissingEntryScript(t *testing.T) {
	t.Parallel()

	dir := makeEntry(t)
	m := testManifest()
	m.EntryScript = "absent/main.js"

	_, err := NewLaunchSpec(dir, m, nil)
	if !errors.Is(err, issue.ErrLaunch) {
		t.Fatalf("err = %v, want ErrLaunch", err)
	}
}
