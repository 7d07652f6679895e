// Package temp makes hierarchical temporary directories. The agent roots all
// of its scratch files (transfer-tool info files) under one Dir so that every
// exit path can clean up by name.
package temp

import (
	"io/ioutil"
	"os"
	"path"
)

// Dir is a directory for temporary files, possibly nested under another Dir.
type Dir struct {
	Path string
}

// NewDir creates dir (and parents) if needed and returns it as a Dir.
func NewDir(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Dir{Path: dir}, nil
}

// FixedFile returns the path of a named file under d without creating it.
func (d *Dir) FixedFile(name string) string {
	return path.Join(d.Path, name)
}

// TempDir creates a fresh directory under d with the given prefix.
func (d *Dir) TempDir(prefix string) (*Dir, error) {
	p, err := ioutil.TempDir(d.Path, prefix)
	if err != nil {
		return nil, err
	}
	return &Dir{Path: p}, nil
}

// TempFile creates a new temporary file under d.
func (d *Dir) TempFile(prefix string) (*os.File, error) {
	return ioutil.TempFile(d.Path, prefix)
}
