// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banderole/banderole/internal/cache"
	"github.com/banderole/banderole/internal/config"
)

var (
	// cacheCleanAll removes the whole cache instead of just staging leftovers
	cacheCleanAll bool
)

// cacheCmd groups commands operating on the extraction cache
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clean the extraction cache",
	Long: `Inspect and clean banderole's per-user cache.

The cache holds extracted bundles (one directory per build), downloaded
Node runtimes and the Node.js release index. Bundled executables recreate
missing entries on their next run, so cleaning is always safe.`,
}

// cachePathCmd prints the cache root
var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache directory",
	RunE:  runCachePath,
}

// cacheCleanCmd removes cache contents
var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove staging leftovers, or everything with --all",
	Long: `Remove interrupted-extraction leftovers from the cache.

With --all, the entire cache is removed: extracted bundles, downloaded
Node runtimes and the release index. Everything is recreated on demand.`,
	RunE: runCacheClean,
}

func init() {
	cacheCmd.AddCommand(cachePathCmd)
	cacheCmd.AddCommand(cacheCleanCmd)

	cacheCleanCmd.Flags().BoolVar(&cacheCleanAll, "all", false, "remove the entire cache, not just staging leftovers")
}

// cacheRootFromConfig honors the cache_dir config key the same way bundle
// builds and bundled executables do.
func cacheRootFromConfig() (string, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return "", err
	}
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return cache.Root()
}

func runCachePath(cmd *cobra.Command, args []string) error {
	root, err := cacheRootFromConfig()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), root)
	return nil
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	root, err := cacheRootFromConfig()
	if err != nil {
		return err
	}

	if cacheCleanAll {
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("failed to remove cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(root))
		return nil
	}

	cache.SweepStaging(root, 0)
	fmt.Fprintf(cmd.OutOrStdout(), "%s Removed staging leftovers under %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(filepath.Clean(root)))
	return nil
}
