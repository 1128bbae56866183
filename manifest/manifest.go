// Package manifest handles javelin.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a javelin.toml configuration.
type Manifest struct {
	Engine  Engine  `toml:"engine"`
	Profile Profile `toml:"profile"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the javelin.toml file (set at load time).
	Dir string `toml:"-"`
}

// Engine configures the interpreter.
type Engine struct {
	MaxFrameDepth        int  `toml:"max-frame-depth"`
	InlineFieldAccessors bool `toml:"inline-field-accessors"`
}

// Profile configures the execution profile store.
type Profile struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Log configures logging verbosity.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the configuration used when no javelin.toml exists.
func Default() *Manifest {
	return &Manifest{
		Engine: Engine{
			MaxFrameDepth:        2048,
			InlineFieldAccessors: true,
		},
		Profile: Profile{
			Path: "javelin-profile.db",
		},
	}
}

// Load parses a javelin.toml file from the given directory. Missing keys
// keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "javelin.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Engine.MaxFrameDepth <= 0 {
		m.Engine.MaxFrameDepth = 2048
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a javelin.toml file, then
// loads and returns the manifest. Returns the defaults if none is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, "javelin.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}
