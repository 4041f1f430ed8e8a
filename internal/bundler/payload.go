// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/banderole/banderole/internal/discovery"
	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/archive"
)

type payloadInputs struct {
	pkg         *discovery.PackageJSON
	projectDir  string
	sourceDir   string // relative to projectDir, "." for the root
	deps        []discovery.ResolvedDep
	nodeDir     string
	nodeVersion string
	compress    bool
}

// buildPayload assembles the payload archive in a temp file and returns its
// path and the entry script relative to the bundled app root.
func buildPayload(in payloadInputs) (payloadPath, entryScript string, err error) {
	tmp, err := os.CreateTemp("", "banderole-payload-*.zip")
	if err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "create payload file")
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	b := archive.NewBuilder(tmp, in.compress)

	entryScript, err = addAppTree(b, in)
	if err != nil {
		return "", "", err
	}
	if err = addDependencies(b, in); err != nil {
		return "", "", err
	}
	if err = b.AddDirTree("node", in.nodeDir, nil); err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "add node runtime to payload")
	}

	manifest := &archive.Manifest{
		AppName:     in.pkg.Name,
		AppVersion:  in.pkg.Version,
		NodeVersion: in.nodeVersion,
		EntryScript: entryScript,
	}
	if err = b.Finish(manifest); err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "finalize payload")
	}
	if err = tmp.Close(); err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "flush payload file")
	}
	return tmp.Name(), entryScript, nil
}

// addAppTree bundles the application sources under app/ and returns the
// entry script path inside it. A nested source dir becomes the app root, so
// the original package.json is added with its main rewritten to match.
func addAppTree(b *archive.Builder, in payloadInputs) (string, error) {
	srcRoot := filepath.Join(in.projectDir, filepath.FromSlash(in.sourceDir))

	skip := func(rel string, _ fs.DirEntry) bool {
		base := filepath.Base(rel)
		return base == "node_modules" || base == ".git"
	}
	if err := b.AddDirTree("app", srcRoot, skip); err != nil {
		return "", issue.Wrap(err, issue.ErrBuild, "add app sources to payload")
	}

	if in.sourceDir == "." {
		return in.pkg.EntryScript(), nil
	}

	rewritten, err := in.pkg.RewriteMainRelativeTo(in.sourceDir)
	if err != nil {
		return "", issue.Wrap(err, issue.ErrBuild, "rewrite package.json for bundle")
	}
	entry := strings.TrimPrefix(in.pkg.EntryScript(), path.Clean(in.sourceDir)+"/")
	if entry == in.pkg.EntryScript() {
		// main points outside the source dir; keep its basename and hope the
		// compiler emitted it at the output root.
		entry = path.Base(in.pkg.EntryScript())
	}

	if err := b.AddBytes("app/package.json", rewritten, 0o644); err != nil {
		// The source dir may carry its own package.json copy already.
		if !strings.Contains(err.Error(), "duplicate") {
			return "", issue.Wrap(err, issue.ErrBuild, "add package.json to payload")
		}
	}
	return entry, nil
}

// addDependencies bundles the resolved production closure flattened under
// app/node_modules/, plus the package manager's .bin links and bookkeeping
// files so transitively spawned tools keep working.
func addDependencies(b *archive.Builder, in payloadInputs) error {
	for _, dep := range in.deps {
		prefix := path.Join("app", "node_modules", filepath.ToSlash(dep.Name))
		skip := func(rel string, _ fs.DirEntry) bool {
			return filepath.Base(rel) == "node_modules"
		}
		if err := b.AddDirTree(prefix, dep.Dir, skip); err != nil {
			return issue.WrapResource(err, issue.ErrBuild, "add dependency to payload", dep.Name)
		}
	}

	nm := filepath.Join(in.projectDir, "node_modules")

	binDir := filepath.Join(nm, ".bin")
	if info, err := os.Stat(binDir); err == nil && info.IsDir() {
		if err := b.AddDirTree("app/node_modules/.bin", binDir, nil); err != nil {
			return issue.Wrap(err, issue.ErrBuild, "add .bin links to payload")
		}
	}

	// pnpm bookkeeping; harmless to include, required by some tooling.
	modulesYaml := filepath.Join(nm, ".modules.yaml")
	if info, err := os.Stat(modulesYaml); err == nil && info.Mode().IsRegular() {
		if err := b.AddFile("app/node_modules/.modules.yaml", modulesYaml); err != nil {
			return issue.Wrap(err, issue.ErrBuild, "add .modules.yaml to payload")
		}
	}

	return nil
}
