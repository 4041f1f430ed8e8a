// SPDX-License-Identifier: MPL-2.0

// Package discovery inspects a Node.js project on disk: its package.json,
// where its built output lives, which package manager installed its
// node_modules and which production dependencies have to travel into a
// bundle.
package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// PackageJSON is the subset of package.json the bundler needs.
type PackageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Main                 string            `json:"main"`
	Bin                  json.RawMessage   `json:"bin,omitempty"`
	Dependencies         map[string]string `json:"dependencies,omitempty"`
	PeerDependencies     map[string]string `json:"peerDependencies,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`
	Workspaces           json.RawMessage   `json:"workspaces,omitempty"`

	// Dir is the directory the file was read from, not part of the JSON.
	Dir string `json:"-"`
}

// ReadPackageJSON loads and parses dir/package.json.
func ReadPackageJSON(dir string) (*PackageJSON, error) {
	path := filepath.Join(dir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	pkg.Dir = dir
	return &pkg, nil
}

// EntryScript returns the package's launch script relative to its root,
// defaulting to index.js when main is not set.
func (p *PackageJSON) EntryScript() string {
	if p.Main != "" {
		return filepath.ToSlash(filepath.Clean(p.Main))
	}
	return "index.js"
}

// HasWorkspaces reports whether the package declares npm/yarn workspaces.
func (p *PackageJSON) HasWorkspaces() bool {
	return len(p.Workspaces) > 0
}

// RewriteMainRelativeTo returns a copy of the raw package.json content with
// main pointing at the entry script relative to sourceDir. When the built
// output is bundled from a nested directory the original "dist/index.js"
// style main would dangle, so the bundled copy gets a rewritten one.
func (p *PackageJSON) RewriteMainRelativeTo(sourceDir string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(p.Dir, "package.json"))
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing package.json: %w", err)
	}

	rel, err := filepath.Rel(filepath.Join(p.Dir, sourceDir), filepath.Join(p.Dir, filepath.FromSlash(p.EntryScript())))
	if err != nil || rel == "" || rel == "." {
		rel = filepath.Base(p.EntryScript())
	}
	doc["main"] = filepath.ToSlash(rel)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding package.json: %w", err)
	}
	return append(out, '\n'), nil
}
