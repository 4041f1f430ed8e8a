// SPDX-License-Identifier: MPL-2.0

// Package launcher starts the bundled Node.js process from a complete cache
// entry.
//
// The launch is a passthrough: argv, environment, working directory inside
// the extracted app, and the three standard streams all reach Node
// untouched. On platforms with exec semantics the stub process is replaced
// outright; elsewhere the child is spawned and its exit status relayed.
package launcher

import (
	"os"
	"path/filepath"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/archive"
	"github.com/banderole/banderole/pkg/platform"
)

// BundleEnvVar is set in the child environment so bundled applications can
// detect they run from an artifact and so a bundled banderole cannot
// recursively launch itself.
const BundleEnvVar = "BANDEROLE_BUNDLE"

// LaunchSpec is the immutable description of one launch. Build it with
// NewLaunchSpec; nothing mutates it afterwards.
type LaunchSpec struct {
	// NodePath is the absolute path of the bundled node binary.
	NodePath string
	// ScriptPath is the absolute path of the entry script.
	ScriptPath string
	// WorkDir is the extracted app directory the child starts in.
	WorkDir string
	// Args are the arguments after the program name, passed to the script
	// verbatim.
	Args []string
	// Env is the complete child environment.
	Env []string
}

// NewLaunchSpec resolves a launch against an extracted entry directory. The
// entry is complete by contract; a missing runtime or entry script here
// means the bundle was built wrong, which is a launch failure and never
// retried.
func NewLaunchSpec(entryDir string, m *archive.Manifest, args []string) (*LaunchSpec, error) {
	nodePath := filepath.Join(entryDir, "node", platform.Current().NodeExecutable())
	if _, err := os.Stat(nodePath); err != nil {
		return nil, issue.New(issue.ErrLaunch).
			WithOperation("locate bundled node binary").
			WithResource(nodePath).
			WithSuggestion("Rebuild the executable; its runtime tree is incomplete").
			Wrap(err).
			BuildError()
	}

	workDir := filepath.Join(entryDir, "app")
	scriptPath := filepath.Join(workDir, filepath.FromSlash(m.EntryScript))
	if _, err := os.Stat(scriptPath); err != nil {
		return nil, issue.New(issue.ErrLaunch).
			WithOperation("locate entry script").
			WithResource(scriptPath).
			WithSuggestion("Rebuild the executable; its entry script is missing").
			Wrap(err).
			BuildError()
	}

	return &LaunchSpec{
		NodePath:   nodePath,
		ScriptPath: scriptPath,
		WorkDir:    workDir,
		Args:       args,
		Env:        append(os.Environ(), BundleEnvVar+"=1"),
	}, nil
}

// argv returns the full child argument vector, program name first.
func (s *LaunchSpec) argv() []string {
	return append([]string{s.NodePath, s.ScriptPath}, s.Args...)
}

// Run hands the process over to the bundled Node. On exec platforms it does
// not return on success; otherwise it blocks until the child exits and
// returns its exit code.
func Run(spec *LaunchSpec) (int, error) {
	return run(spec)
}
