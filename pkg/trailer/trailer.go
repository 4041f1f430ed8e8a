// SPDX-License-Identifier: MPL-2.0

// Package trailer implements the fixed-size footer that addresses the
// payload inside a banderole artifact.
//
// An artifact is an ordinary native executable with an archive appended to
// it, followed by this trailer as the very last bytes of the file. The OS
// loader never looks past the executable image, while the running stub
// reads the last TrailerSize bytes to locate, verify and name the payload.
// The layout (big-endian, fixed width) is:
//
//	offset  size  field
//	     0     4  magic "BNDL"
//	     4     2  format version
//	     6     8  payload offset from start of file
//	    14     8  payload length in bytes
//	    22    32  SHA256 of the payload bytes
//	    54    36  build ID (UUID string, names the cache entry)
package trailer

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// TrailerSize is the exact byte length of an encoded trailer.
	TrailerSize = 90

	// FormatVersion is the trailer format written by this build.
	FormatVersion = 1

	// buildIDLen is the canonical textual UUID length.
	buildIDLen = 36
)

// magic identifies a banderole trailer. A file whose last TrailerSize bytes
// do not start with it has no trailer at all.
var magic = [4]byte{'B', 'N', 'D', 'L'}

var (
	// ErrNoTrailer indicates the file carries no banderole trailer. This is
	// the expected result when probing a bare stub binary.
	ErrNoTrailer = errors.New("no payload trailer found")

	// ErrUnsupportedVersion indicates a trailer written by an incompatible
	// banderole release. The payload must not be trusted or parsed.
	ErrUnsupportedVersion = errors.New("unsupported trailer version")
)

// Trailer describes the payload appended to an artifact.
type Trailer struct {
	Version uint16
	// Offset is the absolute byte offset of the payload from the start of
	// the artifact file.
	Offset uint64
	// Length is the payload size in bytes.
	Length uint64
	// Hash is the SHA256 digest of the payload bytes.
	Hash [32]byte
	// BuildID is the build-time UUID naming the extraction cache entry.
	BuildID string
}

// HashHex returns the payload hash as lowercase hex.
func (t *Trailer) HashHex() string {
	return hex.EncodeToString(t.Hash[:])
}

// Encode serializes the trailer into its fixed TrailerSize-byte form.
func (t *Trailer) Encode() ([]byte, error) {
	if len(t.BuildID) != buildIDLen {
		return nil, fmt.Errorf("build ID must be %d bytes, got %d", buildIDLen, len(t.BuildID))
	}

	buf := make([]byte, TrailerSize)
	copy(buf[0:4], magic[:])
	binary.BigEndian.PutUint16(buf[4:6], t.Version)
	binary.BigEndian.PutUint64(buf[6:14], t.Offset)
	binary.BigEndian.PutUint64(buf[14:22], t.Length)
	copy(buf[22:54], t.Hash[:])
	copy(buf[54:90], t.BuildID)
	return buf, nil
}

// Decode reads the trailer from the last TrailerSize bytes of a file of the
// given size. It returns ErrNoTrailer when the file is too short or the
// magic does not match, and ErrUnsupportedVersion for a trailer written by
// an unknown format revision. Nothing but the final TrailerSize bytes is read.
func Decode(r io.ReaderAt, size int64) (*Trailer, error) {
	if size < TrailerSize {
		return nil, ErrNoTrailer
	}

	buf := make([]byte, TrailerSize)
	if _, err := r.ReadAt(buf, size-TrailerSize); err != nil {
		return nil, fmt.Errorf("reading trailer region: %w", err)
	}

	if !bytes.Equal(buf[0:4], magic[:]) {
		return nil, ErrNoTrailer
	}

	t := &Trailer{
		Version: binary.BigEndian.Uint16(buf[4:6]),
		Offset:  binary.BigEndian.Uint64(buf[6:14]),
		Length:  binary.BigEndian.Uint64(buf[14:22]),
		BuildID: string(buf[54:90]),
	}
	copy(t.Hash[:], buf[22:54])

	if t.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, t.Version)
	}

	// The payload region must lie fully inside the file, before the trailer.
	end := t.Offset + t.Length
	if end < t.Offset || end > uint64(size-TrailerSize) {
		return nil, fmt.Errorf("%w: payload region [%d, %d) exceeds file bounds", ErrNoTrailer, t.Offset, end)
	}

	return t, nil
}

// DecodeFile opens path and decodes its trailer.
func DecodeFile(path string) (*Trailer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		// Read-only handle; close errors are exotic.
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating %s: %w", path, err)
	}

	return Decode(f, info.Size())
}
