// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func testManifest() *Manifest {
	return &Manifest{
		AppName:     "demo",
		AppVersion:  "1.2.3",
		NodeVersion: "22.17.1",
		EntryScript: "index.js",
	}
}

func TestBuilderExtract_RoundTrip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b := NewBuilder(&buf, true)

	if err := b.AddBytes("app/index.js", []byte("console.log('hi')\n"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.AddBytes("app/package.json", []byte(`{"name":"demo"}`), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.AddBytes("node/bin/node", []byte("#!ELF"), 0o755); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}

	m := testManifest()
	if err := b.Finish(m); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if m.EntryCount != 3 {
		t.Errorf("EntryCount = %d, want 3", m.EntryCount)
	}

	dest := t.TempDir()
	got, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got.AppName != "demo" || got.NodeVersion != "22.17.1" || got.EntryScript != "index.js" {
		t.Errorf("manifest round trip mismatch: %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(dest, "app", "index.js"))
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if string(data) != "console.log('hi')\n" {
		t.Errorf("extracted content = %q", data)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(dest, "node", "bin", "node"))
		if err != nil {
			t.Fatalf("stating node binary: %v", err)
		}
		if info.Mode().Perm()&0o111 == 0 {
			t.Errorf("node binary lost the exec bit: %v", info.Mode())
		}
	}
}

func TestBuilder_RejectsBadPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"absolute", "/etc/passwd"},
		{"parent escape", "../outside"},
		{"nested escape", "app/../../outside"},
		{"backslash", `app\index.js`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := NewBuilder(&bytes.Buffer{}, false)
			if err := b.AddBytes(tt.path, []byte("x"), 0o644); err == nil {
				t.Fatalf("AddBytes(%q) succeeded, want error", tt.path)
			}
		})
	}
}

func TestBuilder_RejectsDuplicates(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&bytes.Buffer{}, false)
	if err := b.AddBytes("app/a.js", []byte("x"), 0o644); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := b.AddBytes("app/a.js", []byte("y"), 0o644); err == nil {
		t.Fatal("duplicate add succeeded, want error")
	}
}

func TestBuilder_ExecBitDefault(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("exec bits are not observable on windows")
	}

	var buf bytes.Buffer
	b := NewBuilder(&buf, false)
	// Source bits carry no exec permission; the bin prefixes must add it.
	if err := b.AddBytes("app/node_modules/.bin/tsc", []byte("#!/usr/bin/env node"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.AddBytes("app/readme.txt", []byte("doc"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dest := t.TempDir()
	if _, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	bin, err := os.Stat(filepath.Join(dest, "app", "node_modules", ".bin", "tsc"))
	if err != nil {
		t.Fatal(err)
	}
	if bin.Mode().Perm()&0o111 == 0 {
		t.Errorf(".bin entry not executable: %v", bin.Mode())
	}

	doc, err := os.Stat(filepath.Join(dest, "app", "readme.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if doc.Mode().Perm()&0o111 != 0 {
		t.Errorf("plain entry gained an exec bit: %v", doc.Mode())
	}
}

func TestSymlink_RoundTrip(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation needs privileges on windows")
	}

	var buf bytes.Buffer
	b := NewBuilder(&buf, false)
	if err := b.AddBytes("app/node_modules/.pnpm/pkg@1.0.0/node_modules/pkg/index.js", []byte("x"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.AddSymlink("app/node_modules/pkg", "../node_modules/.pnpm/pkg@1.0.0/node_modules/pkg"); err != nil {
		t.Fatalf("AddSymlink: %v", err)
	}
	if err := b.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dest := t.TempDir()
	if _, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	link := filepath.Join(dest, "app", "node_modules", "pkg")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("Readlink: %v", err)
	}
	if filepath.ToSlash(target) != "../node_modules/.pnpm/pkg@1.0.0/node_modules/pkg" {
		t.Errorf("link target = %q", target)
	}
}

func TestAddDirTree(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "index.js"), "entry")
	mustWrite(t, filepath.Join(src, "lib", "util.js"), "util")
	mustWrite(t, filepath.Join(src, "node_modules", "dep", "index.js"), "dep")

	var buf bytes.Buffer
	b := NewBuilder(&buf, true)
	err := b.AddDirTree("app", src, func(rel string, _ os.DirEntry) bool {
		return rel == "node_modules"
	})
	if err != nil {
		t.Fatalf("AddDirTree: %v", err)
	}
	if err := b.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	dest := t.TempDir()
	if _, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "app", "lib", "util.js")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "app", "node_modules")); !os.IsNotExist(err) {
		t.Errorf("skipped subtree was extracted anyway")
	}
}

func TestExtract_MissingManifest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b := NewBuilder(&buf, false)
	if err := b.AddBytes("app/index.js", []byte("x"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	// Close the underlying writer without a manifest entry.
	if err := b.zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	_, err := Extract(bytes.NewReader(buf.Bytes()), int64(buf.Len()), t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "manifest") {
		t.Fatalf("err = %v, want missing-manifest error", err)
	}
}

func TestReadManifest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	b := NewBuilder(&buf, true)
	if err := b.AddBytes("app/index.js", []byte("x"), 0o644); err != nil {
		t.Fatalf("AddBytes: %v", err)
	}
	if err := b.Finish(testManifest()); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	m, err := ReadManifest(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if m.AppName != "demo" || m.EntryCount != 1 {
		t.Errorf("manifest = %+v", m)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
