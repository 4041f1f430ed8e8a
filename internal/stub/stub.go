// SPDX-License-Identifier: MPL-2.0

// Package stub is the runtime entrypoint compiled into every artifact.
//
// It runs a forward-only sequence: decode the trailer from its own file,
// ensure the payload is extracted in the cache, launch the bundled Node.
// There is no CLI surface here; every argument belongs to the bundled
// application and every failure is one diagnostic line on stderr.
package stub

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/banderole/banderole/internal/cache"
	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/internal/launcher"
	"github.com/banderole/banderole/pkg/trailer"
)

// Exit codes. Launch failures get the conventional command-not-found code so
// wrappers can tell "the bundle is broken" from "the app failed".
const (
	exitFailure = 1
	exitLaunch  = 127
)

// stagingMaxAge is how long an abandoned staging directory may linger before
// the opportunistic sweep removes it.
const stagingMaxAge = 24 * time.Hour

// Main runs the stub and returns the process exit code. args is the full
// os.Args of the process; everything after the program name is passed to the
// bundled application untouched.
func Main(args []string, stderr io.Writer) int {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(stderr, "banderole: cannot locate own executable: %v\n", err)
		return exitFailure
	}

	tr, err := trailer.DecodeFile(execPath)
	if errors.Is(err, trailer.ErrNoTrailer) {
		fmt.Fprintln(stderr, "banderole: this binary is a bare stub with no payload; build an executable with 'banderole bundle'")
		return exitFailure
	}
	if err != nil {
		return fail(stderr, issue.WrapResource(err, issue.ErrFormat, "read payload trailer", execPath))
	}

	root, err := cache.Root()
	if err != nil {
		return fail(stderr, err)
	}
	cache.SweepStaging(root, stagingMaxAge)

	entry, err := cache.EnsureExtracted(execPath, tr, root)
	if err != nil {
		return fail(stderr, err)
	}

	spec, err := launcher.NewLaunchSpec(entry.Dir, entry.Manifest, args[1:])
	if err != nil {
		return fail(stderr, err)
	}

	code, err := launcher.Run(spec)
	if err != nil {
		return fail(stderr, err)
	}
	return code
}

func fail(stderr io.Writer, err error) int {
	var e *issue.Error
	if errors.As(err, &e) {
		fmt.Fprintf(stderr, "banderole: %s\n", e.Format(false))
	} else {
		fmt.Fprintf(stderr, "banderole: %v\n", err)
	}
	if errors.Is(err, issue.ErrLaunch) {
		return exitLaunch
	}
	return exitFailure
}
