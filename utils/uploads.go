package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/raushankrgupta/virtual-tryon-studio/models"
)

const uploadRoot = "vton-uploads"

// MaterializeUpload writes src to disk under its original file name and returns where
// it landed. Each call gets its own directory named after requestID, so uploads with the
// same name never overwrite each other. The caller owns the returned file and should
// Cleanup it once the request finishes.
func MaterializeUpload(baseDir, requestID, filename string, src io.Reader) (*models.MaterializedFile, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return nil, fmt.Errorf("upload has no file name")
	}

	root := filepath.Join(baseDir, uploadRoot)
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}

	prefix := sanitizeFilename(requestID)
	if prefix == "" {
		prefix = "req"
	}
	dir, err := os.MkdirTemp(root, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}

	filePath := filepath.Join(dir, name)
	dst, err := os.Create(filePath)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("error saving file: %w", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("error saving file content: %w", err)
	}

	return models.NewMaterializedFile(name, filePath, dir, size), nil
}

// sanitizeFilename strips any directory components a client may have sent.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
