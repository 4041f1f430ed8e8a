// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"os"
	"path/filepath"
)

// PackageManager identifies which tool laid out a node_modules tree. The
// layouts differ enough that the dependency closure has to know: pnpm
// symlinks packages into a .pnpm store, npm and yarn nest real directories.
type PackageManager string

const (
	Npm  PackageManager = "npm"
	Yarn PackageManager = "yarn"
	Pnpm PackageManager = "pnpm"
)

// DetectPackageManager inspects a project directory. The node_modules
// layout is the strongest signal (a .pnpm dir or symlinked packages mean
// pnpm regardless of lock files); lock files break the remaining ties. npm
// is the fallback.
func DetectPackageManager(projectDir string) PackageManager {
	nm := filepath.Join(projectDir, "node_modules")
	if dirExists(filepath.Join(nm, ".pnpm")) || hasSymlinkedPackages(nm) {
		return Pnpm
	}

	if fileExists(filepath.Join(projectDir, "pnpm-lock.yaml")) {
		return Pnpm
	}
	if fileExists(filepath.Join(projectDir, "yarn.lock")) {
		return Yarn
	}
	return Npm
}

// hasSymlinkedPackages reports whether any direct node_modules entry is a
// symlink, the shape pnpm leaves even without a visible .pnpm dir (e.g.
// workspace members).
func hasSymlinkedPackages(nodeModules string) bool {
	entries, err := os.ReadDir(nodeModules)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Type()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
