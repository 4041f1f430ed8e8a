// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the archive read from r into destDir and returns its
// manifest. Any unreadable or escaping entry fails the whole extraction;
// destDir is left as-is for the caller to discard, since partial trees must
// never be mistaken for complete ones.
func Extract(r io.ReaderAt, size int64, destDir string) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening payload archive: %w", err)
	}

	var manifest *Manifest
	for _, f := range zr.File {
		if f.Name == ManifestName {
			m, err := readManifestEntry(f)
			if err != nil {
				return nil, err
			}
			manifest = m
			continue
		}
		if err := extractEntry(f, destDir); err != nil {
			return nil, err
		}
	}

	if manifest == nil {
		return nil, fmt.Errorf("payload archive has no manifest entry")
	}
	return manifest, nil
}

// ReadManifest returns the manifest without extracting anything.
func ReadManifest(r io.ReaderAt, size int64) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening payload archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name == ManifestName {
			return readManifestEntry(f)
		}
	}
	return nil, fmt.Errorf("payload archive has no manifest entry")
}

func readManifestEntry(f *zip.File) (*Manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening manifest entry: %w", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading manifest entry: %w", err)
	}
	return UnmarshalManifest(data)
}

// securePath joins an entry name onto destDir, refusing anything that would
// land outside it.
func securePath(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", name)
	}
	return dest, nil
}

func extractEntry(f *zip.File, destDir string) error {
	dest, err := securePath(destDir, f.Name)
	if err != nil {
		return err
	}

	mode := f.Mode()
	if mode.IsDir() || strings.HasSuffix(f.Name, "/") {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", f.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", f.Name, err)
	}

	if mode&fs.ModeSymlink != 0 {
		return extractSymlink(f, dest)
	}
	return extractFile(f, dest, mode.Perm())
}

func extractSymlink(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening link entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	target, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("reading link entry %s: %w", f.Name, err)
	}
	if len(target) == 0 {
		return fmt.Errorf("link entry %s has an empty target", f.Name)
	}

	if err := os.Symlink(filepath.FromSlash(string(target)), dest); err != nil {
		return fmt.Errorf("creating link %s: %w", f.Name, err)
	}
	return nil
}

func extractFile(f *zip.File, dest string, perm fs.FileMode) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", f.Name, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", f.Name, err)
	}
	return nil
}
