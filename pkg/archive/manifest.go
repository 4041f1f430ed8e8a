// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"encoding/json"
	"fmt"
)

// ManifestName is the archive path of the manifest entry. It lives under a
// dotted directory so it can never collide with application files, which are
// all rooted at app/ or node/.
const ManifestName = ".banderole/manifest.json"

// ManifestVersion is the manifest schema revision written by this build.
const ManifestVersion = 1

// Manifest describes the contents of a payload archive. It is written as the
// final entry during packing and is the first thing the extracted-entry
// consumer reads, so it carries everything needed to launch without touching
// package.json again.
type Manifest struct {
	// Version is the manifest schema revision.
	Version int `json:"version"`
	// AppName is the bundled application's package.json name.
	AppName string `json:"app_name"`
	// AppVersion is the bundled application's package.json version.
	AppVersion string `json:"app_version,omitempty"`
	// NodeVersion is the exact Node.js version bundled under node/.
	NodeVersion string `json:"node_version"`
	// EntryScript is the launch script path relative to the app/ directory,
	// in slash form.
	EntryScript string `json:"entry_script"`
	// EntryCount is the number of archive entries, excluding the manifest.
	EntryCount int `json:"entry_count"`
	// TotalSize is the sum of uncompressed entry sizes in bytes, excluding
	// the manifest.
	TotalSize int64 `json:"total_size"`
}

// Validate reports whether the manifest is complete enough to launch from.
func (m *Manifest) Validate() error {
	if m.Version != ManifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.AppName == "" {
		return fmt.Errorf("manifest has no app name")
	}
	if m.EntryScript == "" {
		return fmt.Errorf("manifest has no entry script")
	}
	if m.NodeVersion == "" {
		return fmt.Errorf("manifest has no node version")
	}
	return nil
}

// MarshalManifest renders the manifest as indented JSON.
func MarshalManifest(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return data, nil
}

// UnmarshalManifest parses and validates manifest JSON.
func UnmarshalManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
