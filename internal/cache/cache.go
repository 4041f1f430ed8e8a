// SPDX-License-Identifier: MPL-2.0

// Package cache manages the per-user extraction cache that artifacts unpack
// themselves into.
//
// Each build gets one entry directory named by its build ID. An entry is
// complete if and only if its completion marker exists; the marker is
// written inside a temporary sibling directory which is then renamed into
// place, so a complete entry is visible atomically and no lock files are
// needed. Concurrent first runs race on the rename and every loser discards
// its own work and uses the winner's entry.
package cache

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/xyproto/env/v2"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/archive"
	"github.com/banderole/banderole/pkg/platform"
	"github.com/banderole/banderole/pkg/trailer"
)

// MarkerName is the completion marker file inside a finished entry. It holds
// the payload manifest, so a cache hit needs nothing but this one file.
const MarkerName = ".banderole-ok"

// tmpInfix marks in-progress extraction directories, which are siblings of
// their final entry so the rename never crosses filesystems.
const tmpInfix = ".tmp-"

// Root resolves the cache root directory without creating it:
// $BANDEROLE_CACHE_DIR when set, %LOCALAPPDATA%\banderole on Windows, else
// $XDG_CACHE_HOME/banderole falling back to ~/.cache/banderole.
func Root() (string, error) {
	if dir := env.Str("BANDEROLE_CACHE_DIR"); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == platform.Windows {
		if local := env.Str("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "banderole"), nil
		}
	}

	base := env.Dir("XDG_CACHE_HOME", "~/.cache")
	if base == "" || base == "~/.cache" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", issue.Wrap(err, issue.ErrCache, "resolve cache root")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "banderole"), nil
}

// Entry is a complete extraction cache entry.
type Entry struct {
	// Dir is the entry directory holding the extracted app/ and node/ trees.
	Dir string
	// Manifest describes the extracted payload.
	Manifest *archive.Manifest
	// Extracted reports whether this process performed the extraction, as
	// opposed to finding the entry already complete.
	Extracted bool
}

// EnsureExtracted returns the complete cache entry for the artifact at
// execPath, extracting it under root first if needed. tr must be the
// artifact's own decoded trailer.
func EnsureExtracted(execPath string, tr *trailer.Trailer, root string) (*Entry, error) {
	entryDir := filepath.Join(root, tr.BuildID)

	// Hit path: a readable marker is the entire completeness check.
	if m, err := readMarker(entryDir); err == nil {
		return &Entry{Dir: entryDir, Manifest: m}, nil
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, issue.WrapResource(err, issue.ErrCache, "create cache root", root)
	}

	f, err := os.Open(execPath)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrCache, "open artifact", execPath)
	}
	defer func() { _ = f.Close() }()

	payload := io.NewSectionReader(f, int64(tr.Offset), int64(tr.Length))
	if err := verifyHash(payload, tr); err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp(root, tr.BuildID+tmpInfix)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrCache, "create staging directory", root)
	}
	// Whatever happens below, an unrenamed staging dir is garbage.
	defer func() { _ = os.RemoveAll(tmpDir) }()

	m, err := archive.Extract(payload, int64(tr.Length), tmpDir)
	if err != nil {
		return nil, issue.Wrap(err, issue.ErrFormat, "extract payload")
	}

	if err := writeMarker(tmpDir, m); err != nil {
		return nil, err
	}

	if err := os.Rename(tmpDir, entryDir); err != nil {
		// A concurrent first run may have won the rename. If a complete
		// entry is there now, converge on it; anything else is a real error.
		if m2, markerErr := readMarker(entryDir); markerErr == nil {
			return &Entry{Dir: entryDir, Manifest: m2}, nil
		}
		return nil, issue.WrapResource(err, issue.ErrCache, "finalize cache entry", entryDir)
	}

	return &Entry{Dir: entryDir, Manifest: m, Extracted: true}, nil
}

// verifyHash streams the payload once and compares against the trailer's
// digest. A mismatch means the artifact was truncated or altered after
// composition and must never be extracted.
func verifyHash(payload *io.SectionReader, tr *trailer.Trailer) error {
	h := sha256.New()
	if _, err := io.Copy(h, payload); err != nil {
		return issue.Wrap(err, issue.ErrCache, "read payload")
	}

	var got [32]byte
	copy(got[:], h.Sum(nil))
	if got != tr.Hash {
		return issue.New(issue.ErrFormat).
			WithOperation("verify payload integrity").
			WithSuggestion("Rebuild the executable; its payload is corrupt").
			Wrap(fmt.Errorf("payload hash %x does not match trailer %x", got, tr.Hash)).
			BuildError()
	}

	if _, err := payload.Seek(0, io.SeekStart); err != nil {
		return issue.Wrap(err, issue.ErrCache, "rewind payload")
	}
	return nil
}

func readMarker(entryDir string) (*archive.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(entryDir, MarkerName))
	if err != nil {
		return nil, err
	}
	return archive.UnmarshalManifest(data)
}

func writeMarker(dir string, m *archive.Manifest) error {
	data, err := archive.MarshalManifest(m)
	if err != nil {
		return issue.Wrap(err, issue.ErrCache, "encode completion marker")
	}
	if err := os.WriteFile(filepath.Join(dir, MarkerName), data, 0o644); err != nil {
		return issue.Wrap(err, issue.ErrCache, "write completion marker")
	}
	return nil
}

// SweepStaging removes leftover staging directories older than maxAge. These
// accumulate only when an extracting process dies between MkdirTemp and
// rename. Errors are ignored; the sweep is opportunistic.
func SweepStaging(root string, maxAge time.Duration) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), tmpInfix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.RemoveAll(filepath.Join(root, e.Name()))
	}
}
