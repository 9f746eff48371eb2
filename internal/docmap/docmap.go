// Package docmap reads DOCMAP.toml, the per-repo declaration file that
// pins navigation entries and contributes mirror whitelist patterns.
package docmap

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	toml "github.com/pelletier/go-toml/v2"
)

// DocmapFile is the default filename, looked up at the doc root.
const DocmapFile = "DOCMAP.toml"

// FormatVersion is the newest schema version this build understands.
const FormatVersion = 1

// NavPin pins pages to the top of one directory's navigation, after
// index.md and before the title-sorted remainder.
type NavPin struct {
	// Dir is the doc-root-relative directory the pins apply to.
	Dir string `toml:"dir"`

	// Pins are page filenames within Dir, in display order.
	Pins []string `toml:"pins"`
}

// WhitelistSection carries extra mirror whitelist patterns.
type WhitelistSection struct {
	Patterns []string `toml:"patterns,omitempty"`
}

// Docmap is the root structure of DOCMAP.toml.
type Docmap struct {
	// Version is the schema version.
	Version int `toml:"version"`

	// Nav lists the per-directory pin declarations.
	Nav []NavPin `toml:"nav,omitempty"`

	// Whitelist holds patterns merged into the mirror whitelist.
	Whitelist WhitelistSection `toml:"whitelist,omitempty"`
}

// Parse reads and validates a DOCMAP.toml file.
func Parse(filePath string) (*Docmap, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DocmapFile, err)
	}

	var dm Docmap
	if err := toml.Unmarshal(data, &dm); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DocmapFile, err)
	}

	if dm.Version == 0 {
		dm.Version = 1
	}
	if dm.Version > FormatVersion {
		return nil, fmt.Errorf("%s declares version %d, this build understands up to %d", DocmapFile, dm.Version, FormatVersion)
	}

	seen := make(map[string]bool)
	for i := range dm.Nav {
		dir, err := normalizeDir(dm.Nav[i].Dir)
		if err != nil {
			return nil, fmt.Errorf("%s nav entry %d: %w", DocmapFile, i+1, err)
		}
		dm.Nav[i].Dir = dir
		if seen[dir] {
			return nil, fmt.Errorf("%s declares directory %q twice", DocmapFile, dir)
		}
		seen[dir] = true

		for _, pin := range dm.Nav[i].Pins {
			if pin == "" || strings.ContainsAny(pin, "/\\") {
				return nil, fmt.Errorf("%s nav entry for %q: pin %q is not a plain filename", DocmapFile, dir, pin)
			}
		}
	}

	for _, p := range dm.Whitelist.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%s whitelist: invalid pattern %q", DocmapFile, p)
		}
	}

	return &dm, nil
}

// Load reads DOCMAP.toml from the doc root. A missing file yields an
// empty declaration, not an error.
func Load(docRoot string) (*Docmap, error) {
	filePath := filepath.Join(docRoot, DocmapFile)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &Docmap{Version: 1}, nil
	}
	return Parse(filePath)
}

// PinsFor returns the pinned filenames declared for a directory, in
// declaration order, or nil.
func (d *Docmap) PinsFor(dir string) []string {
	for i := range d.Nav {
		if d.Nav[i].Dir == dir {
			return d.Nav[i].Pins
		}
	}
	return nil
}

// Write marshals a declaration to the given path.
func Write(filePath string, dm *Docmap) error {
	data, err := toml.Marshal(dm)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", DocmapFile, err)
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", DocmapFile, err)
	}

	return nil
}

// CreateExample writes a starter DOCMAP.toml used by init.
func CreateExample(filePath string) error {
	example := &Docmap{
		Version: 1,
		Nav: []NavPin{
			{
				Dir:  "sys/kern",
				Pins: []string{"locking.md", "scheduler.md"},
			},
		},
		Whitelist: WhitelistSection{
			Patterns: []string{"sys/contrib/**"},
		},
	}

	return Write(filePath, example)
}

// normalizeDir cleans a declared directory path to the tree-relative
// form used everywhere else ("." for the root).
func normalizeDir(dir string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(strings.ReplaceAll(dir, "\\", "/")))
	if cleaned == "" || cleaned == "." {
		return ".", nil
	}
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("directory %q escapes the doc root", dir)
	}
	return cleaned, nil
}
