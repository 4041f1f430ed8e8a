// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// Workspace describes the monorepo a project belongs to.
type Workspace struct {
	// Root is the workspace root directory.
	Root string
	// Packages holds the member glob patterns, when the workspace tool
	// declares them (pnpm and npm/yarn workspaces do, lerna and friends are
	// detected by marker file only).
	Packages []string
}

// pnpmWorkspaceFile is the pnpm workspace declaration.
type pnpmWorkspaceFile struct {
	Packages []string `yaml:"packages"`
}

// FindWorkspace walks up from projectDir looking for a monorepo root. In a
// hoisting setup the dependency closure has to consult the root
// node_modules, so workspace membership changes where packages are
// resolved from.
func FindWorkspace(projectDir string) (*Workspace, bool) {
	dir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, false
	}

	for {
		if ws, ok := workspaceAt(dir); ok {
			return ws, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, false
		}
		dir = parent
	}
}

func workspaceAt(dir string) (*Workspace, bool) {
	if data, err := os.ReadFile(filepath.Join(dir, "pnpm-workspace.yaml")); err == nil {
		var cfg pnpmWorkspaceFile
		if err := yaml.Unmarshal(data, &cfg); err == nil {
			return &Workspace{Root: dir, Packages: cfg.Packages}, true
		}
		// An unparseable file still marks the root.
		return &Workspace{Root: dir}, true
	}

	for _, marker := range []string{"lerna.json", "rush.json", "nx.json"} {
		if fileExists(filepath.Join(dir, marker)) {
			return &Workspace{Root: dir}, true
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var pkg struct {
			Workspaces json.RawMessage `json:"workspaces"`
		}
		if json.Unmarshal(data, &pkg) == nil && len(pkg.Workspaces) > 0 {
			ws := &Workspace{Root: dir}
			// npm and yarn allow both a bare list and {packages: [...]}.
			var globs []string
			if json.Unmarshal(pkg.Workspaces, &globs) == nil {
				ws.Packages = globs
			} else {
				var obj struct {
					Packages []string `json:"packages"`
				}
				if json.Unmarshal(pkg.Workspaces, &obj) == nil {
					ws.Packages = obj.Packages
				}
			}
			return ws, true
		}
	}

	return nil, false
}
