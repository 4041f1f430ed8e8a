// SPDX-License-Identifier: MPL-2.0

package noderes

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/banderole/banderole/pkg/platform"
)

// maxChecksumsBytes bounds the SHASUMS256.txt response size. The real file
// is a few KB.
const maxChecksumsBytes = 1 << 20

// EnsureNode makes the Node runtime for version and target available under
// cacheRoot and returns its directory. A present runtime is reused with a
// single stat; otherwise the official archive is downloaded, verified
// against the release's SHASUMS256.txt and unpacked. Concurrent downloads
// of the same runtime converge the same way the extraction cache does, by
// racing a directory rename.
func (c *Client) EnsureNode(ctx context.Context, version string, target platform.Target, cacheRoot string) (string, error) {
	destDir := filepath.Join(cacheRoot, "node", version, target.String())
	nodeBin := filepath.Join(destDir, filepath.FromSlash(target.NodeExecutable()))
	if _, err := os.Stat(nodeBin); err == nil {
		return destDir, nil
	}

	parent := filepath.Dir(destDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("creating runtime cache directory: %w", err)
	}

	archiveName := target.NodeArchiveName(version)
	expected, err := c.releaseChecksum(ctx, version, archiveName)
	if err != nil {
		return "", err
	}

	archivePath, err := c.downloadArchive(ctx, version, archiveName, parent)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(archivePath) }()

	if err := VerifyFile(archivePath, expected); err != nil {
		return "", fmt.Errorf("verifying %s: %w", archiveName, err)
	}

	tmpDir, err := os.MkdirTemp(parent, target.String()+".tmp-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	// Official archives nest everything under node-v<ver>-<platform>/;
	// strip that component so destDir is the distribution root.
	if strings.HasSuffix(archiveName, ".zip") {
		err = extractZipStripped(archivePath, tmpDir)
	} else {
		err = extractTarGzStripped(archivePath, tmpDir)
	}
	if err != nil {
		return "", fmt.Errorf("unpacking %s: %w", archiveName, err)
	}

	if !target.IsWindows() {
		if err := os.Chmod(filepath.Join(tmpDir, filepath.FromSlash(target.NodeExecutable())), 0o755); err != nil {
			return "", fmt.Errorf("marking node binary executable: %w", err)
		}
	}

	if err := os.Rename(tmpDir, destDir); err != nil {
		if _, statErr := os.Stat(nodeBin); statErr == nil {
			// A concurrent resolver finished first; use its runtime.
			return destDir, nil
		}
		return "", fmt.Errorf("finalizing runtime directory: %w", err)
	}
	return destDir, nil
}

// releaseChecksum fetches the release's SHASUMS256.txt and returns the hash
// for the given archive filename.
func (c *Client) releaseChecksum(ctx context.Context, version, archiveName string) (string, error) {
	data, err := c.fetch(ctx, fmt.Sprintf("%s/v%s/SHASUMS256.txt", c.baseURL, version), maxChecksumsBytes)
	if err != nil {
		return "", fmt.Errorf("fetching checksums for v%s: %w", version, err)
	}

	entries, err := ParseChecksums(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("parsing checksums for v%s: %w", version, err)
	}

	hash, err := FindChecksum(entries, archiveName)
	if err != nil {
		return "", fmt.Errorf("v%s: %w: %s", version, err, archiveName)
	}
	return hash, nil
}

// downloadArchive streams the runtime archive into a temp file next to its
// final location and returns the temp path.
func (c *Client) downloadArchive(ctx context.Context, version, archiveName, dir string) (string, error) {
	url := fmt.Sprintf("%s/v%s/%s", c.baseURL, version, archiveName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", archiveName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %d", archiveName, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, archiveName+".*")
	if err != nil {
		return "", fmt.Errorf("creating download file: %w", err)
	}

	_, err = io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("saving %s: %w", archiveName, err)
	}
	return tmp.Name(), nil
}

// stripFirst drops the leading path component of a slash-separated archive
// entry name. Entries without a nested path (the top directory itself) are
// skipped.
func stripFirst(name string) (string, bool) {
	name = strings.Trim(name, "/")
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

func destPath(destDir, rel string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(rel))
	r, err := filepath.Rel(destDir, dest)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the extraction directory", rel)
	}
	return dest, nil
}

func extractTarGzStripped(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar stream: %w", err)
		}

		rel, ok := stripFirst(hdr.Name)
		if !ok {
			continue
		}
		dest, err := destPath(destDir, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return fmt.Errorf("creating link %s: %w", rel, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return err
			}
			if err := writeFileFrom(tr, dest, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return fmt.Errorf("extracting %s: %w", rel, err)
			}
		default:
			// Hard links and device nodes do not occur in Node archives.
			continue
		}
	}
}

func extractZipStripped(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		rel, ok := stripFirst(f.Name)
		if !ok {
			continue
		}
		dest, err := destPath(destDir, rel)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening entry %s: %w", rel, err)
		}
		err = writeFileFrom(rc, dest, f.Mode().Perm())
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("extracting %s: %w", rel, err)
		}
	}
	return nil
}

func writeFileFrom(r io.Reader, dest string, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
