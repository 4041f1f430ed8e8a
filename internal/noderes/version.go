// SPDX-License-Identifier: MPL-2.0

// Package noderes resolves which Node.js version a project wants and makes
// sure a matching runtime distribution is available locally.
package noderes

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// DefaultVersion is used when a project declares no Node version anywhere.
const DefaultVersion = "22.17.1"

// NormalizeSpec canonicalizes a user-written version spec: whitespace and a
// leading "v" are dropped, so "v22", "22.17" and "22.17.1" are all valid
// specs. Returns an error for anything that is not dotted digits.
func NormalizeSpec(raw string) (string, error) {
	spec := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if spec == "" {
		return "", fmt.Errorf("empty version spec")
	}
	for _, part := range strings.Split(spec, ".") {
		if part == "" {
			return "", fmt.Errorf("malformed version spec %q", raw)
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return "", fmt.Errorf("malformed version spec %q", raw)
			}
		}
	}
	return spec, nil
}

// IsExact reports whether the spec pins a full major.minor.patch version,
// which can be used directly without consulting the release index.
func IsExact(spec string) bool {
	return strings.Count(spec, ".") == 2
}

// Matches reports whether a concrete version satisfies a possibly partial
// spec: "22" matches every 22.x.y, "22.17" every 22.17.x.
func Matches(spec, version string) bool {
	if spec == version {
		return true
	}
	return strings.HasPrefix(version, spec+".")
}

// Compare orders two concrete Node versions, newest last, using semver
// semantics.
func Compare(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}
