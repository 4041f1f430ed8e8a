// SPDX-License-Identifier: MPL-2.0

// Package platform identifies the OS/architecture targets banderole can
// bundle for and encodes the Node.js distribution naming conventions for
// each of them.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// OS name constants for runtime.GOOS comparisons.
// Centralizes the string literals to avoid scattered magic strings.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// Target is one bundleable OS/architecture pair. OS and Arch hold
// runtime.GOOS / runtime.GOARCH values.
type Target struct {
	OS   string
	Arch string
}

// Current returns the Target of the running process.
func Current() Target {
	return Target{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Supported reports whether official Node.js distributions exist for the target.
func (t Target) Supported() bool {
	switch t.OS {
	case Linux, Darwin, Windows:
	default:
		return false
	}
	switch t.Arch {
	case "amd64", "arm64":
	default:
		return false
	}
	return true
}

// String renders the target using Node.js distribution naming
// (e.g. "linux-x64", "darwin-arm64", "win-x64").
func (t Target) String() string {
	return t.nodeOS() + "-" + t.nodeArch()
}

func (t Target) nodeOS() string {
	switch t.OS {
	case Windows:
		return "win"
	case Darwin:
		return "darwin"
	default:
		return "linux"
	}
}

func (t Target) nodeArch() string {
	if t.Arch == "arm64" {
		return "arm64"
	}
	return "x64"
}

// NodeArchiveName returns the filename of the official Node.js distribution
// archive for the given version, e.g. "node-v22.17.1-linux-x64.tar.gz".
// Windows distributions ship as zip, everything else as gzipped tar.
func (t Target) NodeArchiveName(version string) string {
	if t.OS == Windows {
		return fmt.Sprintf("node-v%s-%s.zip", version, t)
	}
	return fmt.Sprintf("node-v%s-%s.tar.gz", version, t)
}

// NodeExecutable returns the path of the node binary relative to an
// extracted Node.js distribution root.
func (t Target) NodeExecutable() string {
	if t.OS == Windows {
		return "node.exe"
	}
	return filepath.Join("bin", "node")
}

// IsWindows reports whether the target is a Windows platform.
func (t Target) IsWindows() bool { return t.OS == Windows }

// ExeSuffix returns ".exe" for Windows targets and "" otherwise.
func (t Target) ExeSuffix() string {
	if t.OS == Windows {
		return ".exe"
	}
	return ""
}
