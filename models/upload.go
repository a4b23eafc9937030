package models

import (
	"fmt"
	"os"
)

// MaterializedFile is an upload persisted to disk for the duration of one request.
type MaterializedFile struct {
	Name string
	Path string
	Size int64

	dir string
}

// NewMaterializedFile records a file written inside a request-scoped directory.
func NewMaterializedFile(name, path, dir string, size int64) *MaterializedFile {
	return &MaterializedFile{Name: name, Path: path, Size: size, dir: dir}
}

// Ref returns the upload as an image reference.
func (f *MaterializedFile) Ref() ImageRef {
	return ImageRef{Name: f.Name, Path: f.Path, Source: SourceUpload}
}

// Cleanup removes the file and its request directory. Safe to call more than once.
func (f *MaterializedFile) Cleanup() error {
	if f == nil || f.dir == "" {
		return nil
	}
	if err := os.RemoveAll(f.dir); err != nil {
		return fmt.Errorf("failed to remove upload dir %s: %w", f.dir, err)
	}
	return nil
}
