// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"testing"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("fallback to dev when no build info", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "dev"
		Commit = "unknown"
		BuildDate = "unknown"

		got := getVersionString()
		want := "dev (built from source)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestBundleCmd_Flags(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"output", "name", "no-compression", "ignore-cached-versions", "stub"} {
		if bundleCmd.Flags().Lookup(name) == nil {
			t.Errorf("bundle command missing --%s flag", name)
		}
	}
	if f := bundleCmd.Flags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Error("-o should be shorthand for --output")
	}
}

func TestCachePathCmd(t *testing.T) {
	t.Setenv("BANDEROLE_CACHE_DIR", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	var out bytes.Buffer
	cachePathCmd.SetOut(&out)
	if err := runCachePath(cachePathCmd, nil); err != nil {
		t.Fatalf("cache path: %v", err)
	}
	if out.Len() == 0 {
		t.Error("cache path printed nothing")
	}
}
