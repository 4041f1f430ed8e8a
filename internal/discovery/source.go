// SPDX-License-Identifier: MPL-2.0

package discovery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// buildOutputDirs are conventional compiled-output directories, in the
// order they are preferred when nothing else pins the source location.
var buildOutputDirs = []string{"dist", "build", "lib", "out"}

// maxExtendsDepth caps tsconfig extends chains to keep a cyclic pair of
// configs from recursing forever.
const maxExtendsDepth = 8

// DetermineSourceDir decides which directory of the project is bundled as
// the app tree, returned relative to the project root ("." for the root
// itself). Priority: the parent of package.json main when it is a known
// build output dir, then tsconfig's outDir, then the first conventional
// output dir that holds JavaScript, then the project root.
func DetermineSourceDir(projectDir string, pkg *PackageJSON) string {
	if pkg.Main != "" {
		parent := firstComponent(pkg.EntryScript())
		for _, known := range buildOutputDirs {
			if parent == known && dirExists(filepath.Join(projectDir, known)) {
				return known
			}
		}
	}

	if outDir := tsconfigOutDir(filepath.Join(projectDir, "tsconfig.json"), 0); outDir != "" {
		rel := filepath.ToSlash(filepath.Clean(outDir))
		if !strings.HasPrefix(rel, "..") && dirExists(filepath.Join(projectDir, filepath.FromSlash(rel))) {
			return rel
		}
	}

	for _, known := range buildOutputDirs {
		if dirHoldsApp(filepath.Join(projectDir, known)) {
			return known
		}
	}

	return "."
}

func firstComponent(slashPath string) string {
	first, _, found := strings.Cut(slashPath, "/")
	if !found {
		return ""
	}
	return first
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// dirHoldsApp reports whether dir looks like compiled output: it contains a
// JavaScript file or its own package.json.
func dirHoldsApp(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == "package.json" || strings.HasSuffix(name, ".js") || strings.HasSuffix(name, ".mjs") || strings.HasSuffix(name, ".cjs") {
			return true
		}
	}
	return false
}

// tsconfig is the subset of tsconfig.json the bundler cares about.
type tsconfig struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		OutDir string `json:"outDir"`
	} `json:"compilerOptions"`
}

// tsconfigOutDir reads outDir from a tsconfig file, following extends
// chains until a config sets it. tsconfig allows comments and trailing
// commas, so the file is cleaned before JSON parsing.
func tsconfigOutDir(path string, depth int) string {
	if depth > maxExtendsDepth {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	var cfg tsconfig
	if err := json.Unmarshal(stripJSONC(data), &cfg); err != nil {
		return ""
	}

	if cfg.CompilerOptions.OutDir != "" {
		return cfg.CompilerOptions.OutDir
	}

	if cfg.Extends != "" && !strings.HasPrefix(cfg.Extends, "@") {
		base := cfg.Extends
		if !strings.HasSuffix(base, ".json") {
			base += ".json"
		}
		return tsconfigOutDir(filepath.Join(filepath.Dir(path), filepath.FromSlash(base)), depth+1)
	}
	return ""
}

// stripJSONC removes // and /* */ comments and trailing commas from JSONC
// input, leaving string literals intact.
func stripJSONC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]

		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(data) {
				out = append(out, data[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		case c == ',':
			// Drop the comma if the next non-space byte closes a container.
			j := i + 1
			for j < len(data) && (data[j] == ' ' || data[j] == '\t' || data[j] == '\n' || data[j] == '\r') {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}
