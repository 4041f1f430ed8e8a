// SPDX-License-Identifier: MPL-2.0

// Package bundler orchestrates a bundle build: inspect the project, make
// sure a Node runtime is on hand, assemble the payload archive and compose
// the final executable.
package bundler

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/banderole/banderole/internal/cache"
	"github.com/banderole/banderole/internal/config"
	"github.com/banderole/banderole/internal/discovery"
	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/internal/noderes"
	"github.com/banderole/banderole/pkg/bundle"
	"github.com/banderole/banderole/pkg/platform"
)

// stageStyle renders the numbered progress lines.
var stageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

// doneStyle renders the final success line.
var doneStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))

// Options describes one bundle build.
type Options struct {
	// ProjectDir is the Node.js project to bundle.
	ProjectDir string
	// OutputPath, when set, is used verbatim instead of deriving a name.
	OutputPath string
	// Name overrides the executable name derived from package.json.
	Name string
	// Compress controls payload deflate; storing verbatim is faster to
	// extract at first run.
	Compress bool
	// RefreshIndex forces a fresh release index fetch, ignoring the 24h
	// on-disk cache.
	RefreshIndex bool
	// StubPath, when set, overrides stub resolution.
	StubPath string
	// Target is the platform the artifact will run on.
	Target platform.Target
	// Out receives progress lines; nil silences them.
	Out io.Writer
}

// Result describes a finished build.
type Result struct {
	// OutputPath is the composed executable.
	OutputPath string
	// BuildID is the artifact's cache key.
	BuildID string
	// NodeVersion is the exact bundled runtime version.
	NodeVersion string
}

// Bundle runs a complete build and returns where the artifact was written.
func Bundle(ctx context.Context, opts Options, cfg *config.Config) (*Result, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "bundler"})
	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	if !opts.Target.Supported() {
		return nil, issue.New(issue.ErrBuild).
			WithOperation("select target platform").
			WithResource(opts.Target.OS + "/" + opts.Target.Arch).
			WithSuggestion("Official Node.js builds cover linux, darwin and windows on amd64 and arm64").
			BuildError()
	}

	projectDir, err := filepath.Abs(opts.ProjectDir)
	if err != nil {
		return nil, issue.WrapResource(err, issue.ErrBuild, "resolve project directory", opts.ProjectDir)
	}

	pkg, err := discovery.ReadPackageJSON(projectDir)
	if err != nil {
		return nil, issue.New(issue.ErrBuild).
			WithOperation("read package.json").
			WithResource(projectDir).
			WithSuggestion("Run banderole inside a Node.js project, or pass its path").
			Wrap(err).
			BuildError()
	}
	if pkg.Name == "" {
		return nil, issue.New(issue.ErrBuild).
			WithOperation("read package.json").
			WithResource(projectDir).
			WithSuggestion("Add a \"name\" field to package.json").
			BuildError()
	}

	fmt.Fprintln(out, stageStyle.Render("[1/4] inspecting project"))
	sourceDir := discovery.DetermineSourceDir(projectDir, pkg)
	manager := discovery.DetectPackageManager(projectDir)
	searchRoots := []string{projectDir}
	if ws, ok := discovery.FindWorkspace(projectDir); ok {
		logger.Debug("workspace detected", "root", ws.Root)
		if ws.Root != projectDir {
			searchRoots = append(searchRoots, ws.Root)
		}
	}
	logger.Debug("project inspected",
		"name", pkg.Name, "source_dir", sourceDir, "package_manager", manager)

	deps, err := discovery.ResolveClosure(pkg, searchRoots)
	if err != nil {
		return nil, issue.Wrap(err, issue.ErrBuild, "resolve dependency closure")
	}
	logger.Debug("dependency closure resolved", "packages", len(deps))

	fmt.Fprintln(out, stageStyle.Render("[2/4] resolving node runtime"))
	nodeDir, nodeVersion, err := ensureRuntime(ctx, projectDir, opts, cfg, logger)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(out, stageStyle.Render("[3/4] building payload"))
	payloadPath, entryScript, err := buildPayload(payloadInputs{
		pkg:         pkg,
		projectDir:  projectDir,
		sourceDir:   sourceDir,
		deps:        deps,
		nodeDir:     nodeDir,
		nodeVersion: nodeVersion,
		compress:    opts.Compress,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(payloadPath) }()
	logger.Debug("payload built", "path", payloadPath, "entry", entryScript)

	fmt.Fprintln(out, stageStyle.Render("[4/4] composing executable"))
	stubPath, err := bundle.FindStub(opts.StubPath, cfg.StubDir, opts.Target)
	if err != nil {
		return nil, err
	}

	outputPath, err := resolveOutputPath(opts, pkg.Name)
	if err != nil {
		return nil, err
	}

	buildID := uuid.NewString()
	if _, err := bundle.Compose(bundle.ComposeOptions{
		StubPath:    stubPath,
		PayloadPath: payloadPath,
		OutputPath:  outputPath,
		BuildID:     buildID,
	}); err != nil {
		return nil, err
	}

	fmt.Fprintln(out, doneStyle.Render(fmt.Sprintf("✓ %s (node v%s)", outputPath, nodeVersion)))
	return &Result{OutputPath: outputPath, BuildID: buildID, NodeVersion: nodeVersion}, nil
}

// ensureRuntime resolves the project's Node version and makes the runtime
// distribution available locally.
func ensureRuntime(ctx context.Context, projectDir string, opts Options, cfg *config.Config, logger *log.Logger) (dir, version string, err error) {
	spec, source, err := noderes.FindVersionSpec(projectDir)
	if err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "read node version file")
	}
	if source == "" && cfg.DefaultNodeVersion != "" {
		spec, err = noderes.NormalizeSpec(cfg.DefaultNodeVersion)
		if err != nil {
			return "", "", issue.Wrap(err, issue.ErrBuild, "parse default_node_version from config")
		}
	}
	logger.Debug("node version spec", "spec", spec, "source", source)

	cacheRoot := cfg.CacheDir
	if cacheRoot == "" {
		cacheRoot, err = cache.Root()
		if err != nil {
			return "", "", err
		}
	}

	clientOpts := []noderes.ClientOption{
		noderes.WithCacheDir(filepath.Join(cacheRoot, "index")),
	}
	if cfg.DistMirror != "" {
		clientOpts = append(clientOpts, noderes.WithBaseURL(cfg.DistMirror))
	}
	if opts.RefreshIndex {
		clientOpts = append(clientOpts, noderes.WithIndexTTL(0))
	}
	client := noderes.NewClient(clientOpts...)

	version, err = client.Resolve(ctx, spec)
	if err != nil {
		return "", "", issue.New(issue.ErrBuild).
			WithOperation("resolve node version").
			WithResource(spec).
			WithSuggestion("Check the version spec in .nvmrc / .node-version").
			Wrap(err).
			BuildError()
	}
	logger.Debug("node version resolved", "version", version)

	dir, err = client.EnsureNode(ctx, version, opts.Target, cacheRoot)
	if err != nil {
		return "", "", issue.Wrap(err, issue.ErrBuild, "fetch node runtime")
	}
	return dir, version, nil
}

// resolveOutputPath picks the artifact path. An explicit --output wins; the
// derived name dodges existing files by appending -bundle, then a counter.
func resolveOutputPath(opts Options, pkgName string) (string, error) {
	if opts.OutputPath != "" {
		return opts.OutputPath, nil
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(pkgName) // strips any scope prefix
	}
	name += opts.Target.ExeSuffix()

	candidates := []string{name}
	base := name[:len(name)-len(opts.Target.ExeSuffix())]
	candidates = append(candidates, base+"-bundle"+opts.Target.ExeSuffix())
	for n := 2; n <= 99; n++ {
		candidates = append(candidates, fmt.Sprintf("%s-bundle-%d%s", base, n, opts.Target.ExeSuffix()))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); os.IsNotExist(err) {
			return c, nil
		}
	}
	return "", issue.New(issue.ErrBuild).
		WithOperation("pick output path").
		WithResource(name).
		WithSuggestion("Pass --output to name the artifact explicitly").
		BuildError()
}
