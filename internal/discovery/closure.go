// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// maxClosureDepth caps transitive dependency recursion. Real dependency
// trees stay far below it; the cap only guards against cyclic symlink
// layouts.
const maxClosureDepth = 20

// ResolvedDep is one production dependency located on disk.
type ResolvedDep struct {
	// Name is the package name, including any scope.
	Name string
	// Dir is the package's real directory with symlinks resolved, so pnpm
	// store links and workspace links both land on actual content.
	Dir string
}

// ResolveClosure resolves the production dependency closure of pkg through
// the node_modules trees at searchRoots (the project itself first, then the
// workspace root in a hoisting setup). Declared dependencies must resolve;
// peer and optional dependencies are included only when present. The result
// is sorted by name.
func ResolveClosure(pkg *PackageJSON, searchRoots []string) ([]ResolvedDep, error) {
	resolved := map[string]ResolvedDep{}
	if err := resolveInto(pkg, searchRoots, resolved, 0); err != nil {
		return nil, err
	}

	deps := make([]ResolvedDep, 0, len(resolved))
	for _, d := range resolved {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
	return deps, nil
}

func resolveInto(pkg *PackageJSON, searchRoots []string, resolved map[string]ResolvedDep, depth int) error {
	if depth > maxClosureDepth {
		return fmt.Errorf("dependency tree exceeds depth %d at %s", maxClosureDepth, pkg.Name)
	}

	process := func(names map[string]string, required bool) error {
		for name := range names {
			if _, done := resolved[name]; done {
				continue
			}

			dir, ok := findPackage(name, pkg.Dir, searchRoots)
			if !ok {
				if required {
					return fmt.Errorf("dependency %s of %s not found in any node_modules; run your package manager's install first", name, pkg.Name)
				}
				continue
			}

			real, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", dir, err)
			}
			resolved[name] = ResolvedDep{Name: name, Dir: real}

			sub, err := ReadPackageJSON(real)
			if err != nil {
				// A package without a readable package.json has no deps to follow.
				continue
			}
			if err := resolveInto(sub, searchRoots, resolved, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := process(pkg.Dependencies, true); err != nil {
		return err
	}
	if err := process(pkg.OptionalDependencies, false); err != nil {
		return err
	}
	return process(pkg.PeerDependencies, false)
}

// findPackage locates name following Node's resolution shape: the owning
// package's own node_modules first, then each search root's.
func findPackage(name, fromDir string, searchRoots []string) (string, bool) {
	candidates := []string{filepath.Join(fromDir, "node_modules", filepath.FromSlash(name))}
	for _, root := range searchRoots {
		candidates = append(candidates, filepath.Join(root, "node_modules", filepath.FromSlash(name)))
	}

	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, true
		}
	}
	return "", false
}
