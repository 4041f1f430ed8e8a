// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for banderole.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/banderole/banderole/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "banderole",
		Short: "Package Node.js applications as single executables",
		Long: TitleStyle.Render("banderole") + SubtitleStyle.Render(" - Package Node.js applications as single executables") + `

banderole bundles a Node.js application together with a matching Node
runtime into one self-contained executable. The produced binary needs no
Node installation on the target machine: on first run it unpacks itself
into a per-user cache and hands off to the bundled runtime.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Build your app so package.json points at the compiled entry
  2. Run: banderole bundle .
  3. Ship the produced executable

` + SubtitleStyle.Render("Examples:") + `
  banderole bundle .                 Bundle the current project
  banderole bundle ./api -o dist/api Bundle with an explicit output path
  banderole cache path               Show the extraction cache location`,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/banderole/config.yaml)")

	rootCmd.AddCommand(bundleCmd)
	rootCmd.AddCommand(cacheCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// fang overrides rootCmd.Version, so the version goes through
	// fang.WithVersion instead.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. Structured
// errors render their suggestions; verbose mode adds the full cause chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ie *issue.Error
	if errors.As(err, &ie) {
		return ie.Format(verboseMode)
	}
	return err.Error()
}
