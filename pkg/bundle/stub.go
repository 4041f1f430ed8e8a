// SPDX-License-Identifier: MPL-2.0

package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/platform"
)

// StubName returns the conventional filename of a stub binary for a target,
// e.g. "banderole-stub-linux-arm64" or "banderole-stub-windows-amd64.exe".
func StubName(t platform.Target) string {
	return fmt.Sprintf("banderole-stub-%s-%s%s", t.OS, t.Arch, t.ExeSuffix())
}

// FindStub locates the stub binary for a target. An explicit path wins
// unconditionally; otherwise stubDir (from config, may be empty) is checked,
// then the directory of the running executable, where release archives
// place the stubs next to the composer.
func FindStub(explicit, stubDir string, t platform.Target) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", issue.WrapResource(err, issue.ErrBuild, "find stub binary", explicit)
		}
		return explicit, nil
	}

	name := StubName(t)
	var tried []string

	if stubDir != "" {
		p := filepath.Join(stubDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		tried = append(tried, p)
	}

	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		tried = append(tried, p)
	}

	return "", issue.New(issue.ErrBuild).
		WithOperation("find stub binary").
		WithResource(name).
		WithSuggestion("Pass --stub with an explicit stub path").
		WithSuggestion("Set stub_dir in the config file").
		Wrap(fmt.Errorf("looked in %v", tried)).
		BuildError()
}
