// SPDX-License-Identifier: MPL-2.0

package noderes

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// versionFiles are checked in order at each directory level.
var versionFiles = []string{".nvmrc", ".node-version"}

// workspaceMarkers identify a monorepo root. The version file walk does not
// climb past one, so a project inside a workspace can only inherit version
// pins from its own workspace.
var workspaceMarkers = []string{
	"pnpm-workspace.yaml",
	"lerna.json",
	"rush.json",
	"nx.json",
}

// FindVersionSpec walks up from projectDir looking for a Node version file.
// It returns the normalized spec and the file it came from, or
// DefaultVersion with an empty source when no file declares one.
func FindVersionSpec(projectDir string) (spec, source string, err error) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return "", "", err
	}

	for {
		for _, name := range versionFiles {
			path := filepath.Join(dir, name)
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				continue
			}
			raw := strings.TrimSpace(string(data))
			if raw == "" {
				continue
			}
			spec, err = NormalizeSpec(raw)
			if err != nil {
				return "", "", err
			}
			return spec, path, nil
		}

		if isWorkspaceRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return DefaultVersion, "", nil
}

// isWorkspaceRoot reports whether dir is a monorepo root: it carries a
// workspace tool marker file or a package.json with a workspaces field.
func isWorkspaceRoot(dir string) bool {
	for _, marker := range workspaceMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return false
	}
	var pkg struct {
		Workspaces json.RawMessage `json:"workspaces"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	return len(pkg.Workspaces) > 0
}
