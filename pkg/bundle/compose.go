// SPDX-License-Identifier: MPL-2.0

// Package bundle composes self-contained executables from a stub binary and
// a payload archive.
//
// The output file is the stub's bytes, the payload's bytes and a trailer, in
// that order. Nothing inside the stub is patched; the stub finds the payload
// at run time purely through the trailer at the end of its own file.
package bundle

import (
	"crypto/sha256"
	"errors"
	"io"
	"os"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/trailer"
)

// ComposeOptions describes one artifact composition.
type ComposeOptions struct {
	// StubPath is the stub executable for the target platform.
	StubPath string
	// PayloadPath is the finished payload archive.
	PayloadPath string
	// OutputPath is where the artifact is written. An existing file is
	// truncated; conflict resolution is the caller's concern.
	OutputPath string
	// BuildID is the canonical UUID string naming this build's cache entry.
	BuildID string
}

// Compose writes the artifact and returns the trailer it appended. The
// output is created with the exec bit set so it can be run as produced.
func Compose(opts ComposeOptions) (*trailer.Trailer, error) {
	if err := checkStub(opts.StubPath); err != nil {
		return nil, err
	}

	out, err := os.OpenFile(opts.OutputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrBuild, "create output file", opts.OutputPath)
	}

	t, err := compose(out, opts)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = issue.WrapResource(cerr, issue.ErrBuild, "flush output file", opts.OutputPath)
	}
	if err != nil {
		_ = os.Remove(opts.OutputPath)
		return nil, err
	}
	return t, nil
}

func compose(out *os.File, opts ComposeOptions) (*trailer.Trailer, error) {
	stubLen, err := copyFile(out, opts.StubPath)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrBuild, "copy stub", opts.StubPath)
	}

	payload, err := os.Open(opts.PayloadPath)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrBuild, "open payload", opts.PayloadPath)
	}
	defer func() { _ = payload.Close() }()

	// Hash the payload while it streams into the output.
	h := sha256.New()
	payloadLen, err := io.Copy(io.MultiWriter(out, h), payload)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrBuild, "copy payload", opts.PayloadPath)
	}

	t := &trailer.Trailer{
		Version: trailer.FormatVersion,
		Offset:  uint64(stubLen),
		Length:  uint64(payloadLen),
		BuildID: opts.BuildID,
	}
	copy(t.Hash[:], h.Sum(nil))

	enc, err := t.Encode()
	if err != nil {
		return nil, issue.Wrap(err, issue.ErrBuild, "encode trailer")
	}
	if _, err := out.Write(enc); err != nil {
		return nil, issue.Wrap(err, issue.ErrBuild, "write trailer")
	}

	return t, nil
}

// checkStub verifies the stub is a plain binary without a trailer of its
// own. Composing on top of an already-composed artifact would nest payloads
// and the result would launch the wrong one.
func checkStub(path string) error {
	_, err := trailer.DecodeFile(path)
	switch {
	case err == nil, errors.Is(err, trailer.ErrUnsupportedVersion):
		return issue.New(issue.ErrBuild).
			WithOperation("use stub binary").
			WithResource(path).
			WithSuggestion("Pass a bare stub, not an already-composed artifact").
			BuildError()
	case errors.Is(err, trailer.ErrNoTrailer):
		return nil
	default:
		return issue.WrapResource(err, issue.ErrBuild, "probe stub binary", path)
	}
}

func copyFile(dst io.Writer, srcPath string) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()
	return io.Copy(dst, src)
}
