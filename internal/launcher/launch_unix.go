// SPDX-License-Identifier: MPL-2.0

//go:build unix

package launcher

import (
	"os"
	"syscall"

	"github.com/banderole/banderole/internal/issue"
)

// run replaces the current process with the bundled Node. Argv, environment
// and open file descriptors carry over by exec semantics; on success this
// function never returns and the stub leaves no intermediate process behind.
func run(spec *LaunchSpec) (int, error) {
	if err := os.Chdir(spec.WorkDir); err != nil {
		return 0, issue.WrapResource(err, issue.ErrLaunch, "enter app directory", spec.WorkDir)
	}

	if err := syscall.Exec(spec.NodePath, spec.argv(), spec.Env); err != nil {
		return 0, issue.WrapResource(err, issue.ErrLaunch, "exec bundled node", spec.NodePath)
	}

	// Unreachable: Exec either replaces the process or errors.
	return 0, nil
}
