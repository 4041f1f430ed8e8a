// SPDX-License-Identifier: MPL-2.0

// Package config loads the banderole tool configuration.
//
// Configuration is optional; every key has a working default. Values come
// from config.yaml in the platform config directory, overridden by
// BANDEROLE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/banderole/banderole/internal/issue"
	"github.com/banderole/banderole/pkg/platform"
)

const (
	// AppName is the application name, used for config and cache paths.
	AppName = "banderole"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "yaml"

	// envPrefix makes BANDEROLE_CACHE_DIR override cache_dir, and so on.
	envPrefix = "BANDEROLE"
)

// Config holds the tool settings.
type Config struct {
	// CacheDir overrides the extraction/runtime cache root.
	CacheDir string `mapstructure:"cache_dir"`
	// DefaultNodeVersion overrides the built-in fallback Node version used
	// when a project pins none.
	DefaultNodeVersion string `mapstructure:"default_node_version"`
	// DistMirror overrides the Node.js distribution server, for air-gapped
	// or mirrored setups.
	DistMirror string `mapstructure:"dist_mirror"`
	// StubDir is an extra directory searched for stub binaries.
	StubDir string `mapstructure:"stub_dir"`
	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
}

// DefaultConfig returns the built-in settings used when no config file
// exists.
func DefaultConfig() *Config {
	return &Config{}
}

// ConfigDir returns the banderole configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// Load reads the configuration. configFile, when non-empty, is used
// exclusively (and must exist); otherwise config.yaml in ConfigDir is
// loaded when present. Missing files are not an error.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType(ConfigFileExt)

	defaults := DefaultConfig()
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("default_node_version", defaults.DefaultNodeVersion)
	v.SetDefault("dist_mirror", defaults.DistMirror)
	v.SetDefault("stub_dir", defaults.StubDir)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, issue.New(issue.ErrBuild).
				WithOperation("load configuration").
				WithResource(configFile).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file contains valid YAML").
				Wrap(err).
				BuildError()
		}
	} else {
		cfgDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
		if fileExists(path) {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, issue.New(issue.ErrBuild).
					WithOperation("load configuration").
					WithResource(path).
					WithSuggestion("Check that the file contains valid YAML").
					Wrap(err).
					BuildError()
			}
		}
		// No config file found: defaults plus env overrides.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
