// Package manifest handles marten.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/marten/pkg/gc"
)

// Manifest represents a marten.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	GC      GCConfig    `toml:"gc"`
	Store   StoreConfig `toml:"store"`

	// Dir is the directory containing the marten.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures the compilation entry point.
type Source struct {
	Entry string `toml:"entry"`
}

// GCConfig tunes the collector's initial thresholds.
type GCConfig struct {
	Gen0Threshold int `toml:"gen0-threshold"`
	Gen1Threshold int `toml:"gen1-threshold"`
}

// StoreConfig configures the compiled-program store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Load parses a marten.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "marten.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.GC.Gen0Threshold <= 0 {
		m.GC.Gen0Threshold = gc.Gen0InitThreshold
	}
	if m.GC.Gen1Threshold <= 0 {
		m.GC.Gen1Threshold = gc.Gen1InitThreshold
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a marten.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "marten.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the compiled-program store.
func (m *Manifest) StorePath() string {
	if m.Store.Path != "" {
		if filepath.IsAbs(m.Store.Path) {
			return m.Store.Path
		}
		return filepath.Join(m.Dir, m.Store.Path)
	}
	return filepath.Join(m.Dir, ".marten", "programs.db")
}
