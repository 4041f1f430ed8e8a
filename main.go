// SPDX-License-Identifier: MPL-2.0

// banderole packages Node.js applications as single self-contained
// executables.
package main

import cmd "github.com/banderole/banderole/cmd/banderole"

func main() {
	cmd.Execute()
}
