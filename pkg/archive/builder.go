// SPDX-License-Identifier: MPL-2.0

// Package archive builds and extracts banderole payload archives.
//
// A payload is a ZIP file with two top-level directories, app/ (the bundled
// application and its production node_modules) and node/ (a full Node.js
// distribution), plus a manifest entry describing both. Entry names use
// forward slashes regardless of host platform. The Unix exec bit travels in
// the ZIP external attributes so extracted trees run without a chmod pass.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// execDefaultPrefixes lists archive directories whose entries must be
// executable after extraction even when the source filesystem lost the bit
// (FAT mounts, some CI checkouts).
var execDefaultPrefixes = []string{
	"node/bin/",
	"app/node_modules/.bin/",
}

// Builder writes a payload archive entry by entry. It is not safe for
// concurrent use. A Builder that returned an error from any method must be
// abandoned; partial output is the caller's to discard.
type Builder struct {
	zw       *zip.Writer
	seen     map[string]struct{}
	compress bool
	count    int
	total    int64
}

// NewBuilder returns a Builder writing ZIP data to w. When compress is
// false every entry is stored verbatim, which trades artifact size for
// extraction speed.
func NewBuilder(w io.Writer, compress bool) *Builder {
	return &Builder{
		zw:       zip.NewWriter(w),
		seen:     map[string]struct{}{},
		compress: compress,
	}
}

// checkPath validates an entry name before anything is written. Absolute
// paths, parent escapes and duplicates poison the whole archive, so they are
// rejected up front rather than discovered at extraction time.
func (b *Builder) checkPath(name string) error {
	if name == "" {
		return fmt.Errorf("empty archive path")
	}
	if strings.Contains(name, `\`) {
		return fmt.Errorf("archive path %q must use forward slashes", name)
	}
	if path.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("archive path %q is absolute", name)
	}
	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return fmt.Errorf("archive path %q escapes the archive root", name)
	}
	if cleaned != name {
		return fmt.Errorf("archive path %q is not in canonical form", name)
	}
	if _, dup := b.seen[name]; dup {
		return fmt.Errorf("duplicate archive path %q", name)
	}
	return nil
}

// effectiveMode applies the exec-bit default for directories that must stay
// runnable after extraction.
func effectiveMode(name string, mode fs.FileMode) fs.FileMode {
	if mode&0o111 != 0 {
		return mode
	}
	for _, prefix := range execDefaultPrefixes {
		if strings.HasPrefix(name, prefix) {
			return mode | 0o755
		}
	}
	return mode
}

func (b *Builder) header(name string, mode fs.FileMode) *zip.FileHeader {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	if b.compress {
		hdr.Method = zip.Deflate
	}
	hdr.SetMode(mode)
	return hdr
}

// AddBytes writes an in-memory entry, used for generated files such as a
// rewritten package.json.
func (b *Builder) AddBytes(name string, data []byte, mode fs.FileMode) error {
	if err := b.checkPath(name); err != nil {
		return err
	}

	w, err := b.zw.CreateHeader(b.header(name, effectiveMode(name, mode)))
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}

	b.seen[name] = struct{}{}
	b.count++
	b.total += int64(len(data))
	return nil
}

// AddFile copies a regular file from the filesystem into the archive under
// name. The source's permission bits are preserved.
func (b *Builder) AddFile(name, srcPath string) error {
	if err := b.checkPath(name); err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", srcPath, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stating %s: %w", srcPath, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", srcPath)
	}

	w, err := b.zw.CreateHeader(b.header(name, effectiveMode(name, info.Mode().Perm())))
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", name, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		return fmt.Errorf("writing entry %s: %w", name, err)
	}

	b.seen[name] = struct{}{}
	b.count++
	b.total += n
	return nil
}

// AddSymlink stores a symbolic link entry pointing at target. The target is
// kept verbatim; relative targets are resolved at run time against the
// extracted tree, which is how node_modules layouts expect links to behave.
func (b *Builder) AddSymlink(name, target string) error {
	if err := b.checkPath(name); err != nil {
		return err
	}
	if target == "" {
		return fmt.Errorf("symlink %s has an empty target", name)
	}

	hdr := &zip.FileHeader{Name: name, Method: zip.Store}
	hdr.SetMode(fs.ModeSymlink | 0o777)
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating symlink entry %s: %w", name, err)
	}
	if _, err := w.Write([]byte(filepath.ToSlash(target))); err != nil {
		return fmt.Errorf("writing symlink entry %s: %w", name, err)
	}

	b.seen[name] = struct{}{}
	b.count++
	return nil
}

// AddDirTree walks dir and adds every file and symlink below it under the
// given archive prefix. The skip callback, when non-nil, receives each
// source path relative to dir and can exclude subtrees (returning true for a
// directory prunes it entirely).
func (b *Builder) AddDirTree(prefix, dir string, skip func(rel string, d fs.DirEntry) bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walking %s: %w", p, walkErr)
		}
		if p == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}
		if skip != nil && skip(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		name := path.Join(prefix, filepath.ToSlash(rel))
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return fmt.Errorf("reading link %s: %w", p, err)
			}
			return b.AddSymlink(name, target)
		}
		if !d.Type().IsRegular() {
			return fmt.Errorf("%s has unsupported file type %s", p, d.Type())
		}
		return b.AddFile(name, p)
	})
}

// EntryCount returns the number of entries added so far.
func (b *Builder) EntryCount() int { return b.count }

// TotalSize returns the uncompressed bytes added so far.
func (b *Builder) TotalSize() int64 { return b.total }

// Finish completes the manifest bookkeeping fields, writes the manifest as
// the final entry and closes the archive. The Builder is unusable afterwards.
func (b *Builder) Finish(m *Manifest) error {
	m.Version = ManifestVersion
	m.EntryCount = b.count
	m.TotalSize = b.total
	if err := m.Validate(); err != nil {
		return err
	}

	data, err := MarshalManifest(m)
	if err != nil {
		return err
	}

	hdr := &zip.FileHeader{Name: ManifestName, Method: zip.Deflate}
	hdr.SetMode(0o644)
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing manifest entry: %w", err)
	}

	if err := b.zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}
