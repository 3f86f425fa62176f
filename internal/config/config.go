// Package config loads tool settings from segsieve.yml.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig holds settings loaded from segsieve.yml. Zero values mean
// "use the library default".
type FileConfig struct {
	Limit     uint64 `yaml:"limit,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
	ChunkSize uint64 `yaml:"chunkSize,omitempty"`
	Output    string `yaml:"output,omitempty"`
	Verbose   bool   `yaml:"verbose,omitempty"`
	JSON      bool   `yaml:"json,omitempty"`
}

// Load attempts to read segsieve.yml or segsieve.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*FileConfig, error) {
	for _, name := range []string{"segsieve.yml", "segsieve.yaml"} {
		cfg, err := LoadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return cfg, err
	}
	return &FileConfig{}, nil
}

// LoadFile reads a single YAML config file. Unknown keys are rejected so that
// typos do not silently fall back to defaults.
func LoadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
