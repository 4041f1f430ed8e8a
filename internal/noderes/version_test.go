// SPDX-License-Identifier: MPL-2.0

package noderes

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"22.17.1", "22.17.1", false},
		{"v22.17.1", "22.17.1", false},
		{"  v22 \n", "22", false},
		{"22.17", "22.17", false},
		{"", "", true},
		{"v", "", true},
		{"lts/jod", "", true},
		{"22..1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeSpec(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeSpec(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeSpec(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeSpec(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsExact(t *testing.T) {
	t.Parallel()

	if !IsExact("22.17.1") {
		t.Error("IsExact(22.17.1) = false")
	}
	if IsExact("22.17") || IsExact("22") {
		t.Error("partial specs reported as exact")
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec, version string
		want          bool
	}{
		{"22", "22.17.1", true},
		{"22.17", "22.17.1", true},
		{"22.17.1", "22.17.1", true},
		{"22", "23.0.0", false},
		{"22.1", "22.17.1", false},
		{"2", "22.17.1", false},
	}

	for _, tt := range tests {
		if got := Matches(tt.spec, tt.version); got != tt.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tt.spec, tt.version, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	if Compare("22.9.0", "22.10.0") >= 0 {
		t.Error("semver ordering broken: 22.9.0 should sort before 22.10.0")
	}
	if Compare("23.0.0", "22.17.1") <= 0 {
		t.Error("23.0.0 should sort after 22.17.1")
	}
	if Compare("22.17.1", "22.17.1") != 0 {
		t.Error("equal versions should compare equal")
	}
}

func TestFindVersionSpec(t *testing.T) {
	t.Parallel()

	t.Run("nvmrc in project dir", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, ".nvmrc"), []byte("v22.17.1\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		spec, source, err := FindVersionSpec(dir)
		if err != nil {
			t.Fatalf("FindVersionSpec: %v", err)
		}
		if spec != "22.17.1" {
			t.Errorf("spec = %q", spec)
		}
		if source != filepath.Join(dir, ".nvmrc") {
			t.Errorf("source = %q", source)
		}
	})

	t.Run("node-version in parent", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		proj := filepath.Join(root, "packages", "app")
		if err := os.MkdirAll(proj, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, ".node-version"), []byte("20.11.0"), 0o644); err != nil {
			t.Fatal(err)
		}

		spec, _, err := FindVersionSpec(proj)
		if err != nil {
			t.Fatalf("FindVersionSpec: %v", err)
		}
		if spec != "20.11.0" {
			t.Errorf("spec = %q", spec)
		}
	})

	t.Run("walk stops at workspace root", func(t *testing.T) {
		t.Parallel()

		outer := t.TempDir()
		ws := filepath.Join(outer, "repo")
		proj := filepath.Join(ws, "packages", "app")
		if err := os.MkdirAll(proj, 0o755); err != nil {
			t.Fatal(err)
		}
		// Version file above the workspace root must not be seen.
		if err := os.WriteFile(filepath.Join(outer, ".nvmrc"), []byte("18.0.0"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(ws, "pnpm-workspace.yaml"), []byte("packages:\n  - packages/*\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		spec, source, err := FindVersionSpec(proj)
		if err != nil {
			t.Fatalf("FindVersionSpec: %v", err)
		}
		if spec != DefaultVersion || source != "" {
			t.Errorf("spec = %q source = %q, want default", spec, source)
		}
	})

	t.Run("package.json workspaces is a root", func(t *testing.T) {
		t.Parallel()

		ws := t.TempDir()
		proj := filepath.Join(ws, "apps", "web")
		if err := os.MkdirAll(proj, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(ws, "package.json"), []byte(`{"name":"mono","workspaces":["apps/*"]}`), 0o644); err != nil {
			t.Fatal(err)
		}
		if !isWorkspaceRoot(ws) {
			t.Error("isWorkspaceRoot = false for workspaces package.json")
		}
		if isWorkspaceRoot(proj) {
			t.Error("isWorkspaceRoot = true for plain directory")
		}
	})
}
