// Package metadata reads the project descriptor the status route reports.
package metadata

import (
	"fmt"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Project is the [project] table of the descriptor.
type Project struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Description string `koanf:"description"`
}

// Reader loads the descriptor at Path. It keeps no cache, so edits to the
// file show up on the next call.
type Reader struct {
	Path string
}

// NewReader creates a reader for the TOML file at path.
func NewReader(path string) *Reader {
	return &Reader{Path: path}
}

// Project parses the file and returns its [project] table.
func (r *Reader) Project() (*Project, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(r.Path), toml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", r.Path, err)
	}
	if !k.Exists("project") {
		return nil, fmt.Errorf("%s: missing [project] table", r.Path)
	}

	var p Project
	if err := k.Unmarshal("project", &p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.Path, err)
	}
	return &p, nil
}

// Version returns project.version. A missing or empty version is an error.
func (r *Reader) Version() (string, error) {
	p, err := r.Project()
	if err != nil {
		return "", err
	}
	if p.Version == "" {
		return "", fmt.Errorf("%s: project.version is not set", r.Path)
	}
	return p.Version, nil
}
