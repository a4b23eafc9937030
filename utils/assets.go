package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png"}

// LoadImagesFromDirectory maps each image file name in directory to its path.
// Extensions are matched case-sensitively, as the sample sets are bundled.
func LoadImagesFromDirectory(directory string) (map[string]string, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory %s: %w", directory, err)
	}

	images := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !hasImageExtension(entry.Name()) {
			continue
		}
		images[entry.Name()] = filepath.Join(directory, entry.Name())
	}
	return images, nil
}

func hasImageExtension(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// SortedNames returns the keys of an image map in display order.
func SortedNames(images map[string]string) []string {
	names := make([]string, 0, len(images))
	for name := range images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
