// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package launcher

import (
	"errors"
	"os"
	"os/exec"
	"os/signal"

	"github.com/banderole/banderole/internal/issue"
)

// run spawns the bundled Node and waits for it, relaying its exit code.
// Platforms without exec semantics keep the stub alive as a thin parent, so
// interrupt-style signals are forwarded to the child and the stub's own exit
// status mirrors the child's.
func run(spec *LaunchSpec) (int, error) {
	cmd := exec.Command(spec.NodePath, append([]string{spec.ScriptPath}, spec.Args...)...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	sigs := make(chan os.Signal, 4)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)

	if err := cmd.Start(); err != nil {
		return 0, issue.WrapResource(err, issue.ErrLaunch, "start bundled node", spec.NodePath)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	for {
		select {
		case sig := <-sigs:
			_ = cmd.Process.Signal(sig)
		case err := <-done:
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), nil
			}
			if err != nil {
				return 0, issue.Wrap(err, issue.ErrLaunch, "wait for bundled node")
			}
			return 0, nil
		}
	}
}
