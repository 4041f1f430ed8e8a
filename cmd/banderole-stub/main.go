// SPDX-License-Identifier: MPL-2.0

// banderole-stub is the runtime entrypoint prepended to every bundled
// executable. It carries no CLI of its own: argv is passed through to the
// bundled application untouched.
package main

import (
	"os"

	"github.com/banderole/banderole/internal/stub"
)

func main() {
	os.Exit(stub.Main(os.Args, os.Stderr))
}
