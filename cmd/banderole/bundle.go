// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banderole/banderole/internal/bundler"
	"github.com/banderole/banderole/internal/config"
	"github.com/banderole/banderole/pkg/platform"
)

var (
	// bundleOutput is the output path for the composed executable
	bundleOutput string
	// bundleName overrides the executable name derived from package.json
	bundleName string
	// bundleNoCompression stores the payload verbatim instead of deflating it
	bundleNoCompression bool
	// bundleIgnoreCachedVersions forces a fresh release index fetch
	bundleIgnoreCachedVersions bool
	// bundleStub overrides stub binary resolution
	bundleStub string
)

// bundleCmd produces a self-contained executable from a Node.js project
var bundleCmd = &cobra.Command{
	Use:   "bundle [path]",
	Short: "Bundle a Node.js project into a single executable",
	Long: `Bundle a Node.js project into a single self-contained executable.

The project's package.json names the app and its entry script. The Node
version is taken from .nvmrc or .node-version (walking up to the workspace
root), downloaded and verified if not cached, and packed into the artifact
together with the app sources and its production dependencies.

Examples:
  banderole bundle .
  banderole bundle ./services/api --output dist/api
  banderole bundle . --name mytool --no-compression`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBundle,
}

func init() {
	bundleCmd.Flags().StringVarP(&bundleOutput, "output", "o", "", "output path for the executable (default: derived from the package name)")
	bundleCmd.Flags().StringVarP(&bundleName, "name", "n", "", "executable name (default: package.json name)")
	bundleCmd.Flags().BoolVar(&bundleNoCompression, "no-compression", false, "store the payload uncompressed for faster first-run extraction")
	bundleCmd.Flags().BoolVar(&bundleIgnoreCachedVersions, "ignore-cached-versions", false, "refresh the Node.js release index instead of using the cached copy")
	bundleCmd.Flags().StringVar(&bundleStub, "stub", "", "path to the stub binary (default: looked up next to banderole)")
}

func runBundle(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		cfg.Verbose = true
	}

	opts := bundler.Options{
		ProjectDir:   projectDir,
		OutputPath:   bundleOutput,
		Name:         bundleName,
		Compress:     !bundleNoCompression,
		RefreshIndex: bundleIgnoreCachedVersions,
		StubPath:     bundleStub,
		Target:       platform.Current(),
		Out:          cmd.OutOrStdout(),
	}

	if _, err := bundler.Bundle(cmd.Context(), opts, cfg); err != nil {
		// Print the full diagnostic (with suggestions) ourselves; the
		// ExitError only carries the code.
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, cfg.Verbose))
		return &ExitError{Code: 1}
	}
	return nil
}
