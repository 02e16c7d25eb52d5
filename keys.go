package main

import (
	"path"
	"path/filepath"
	"strings"
)

// Keys containing this marker are never uploaded.
const placeholderMarker = ".gitkeep"

// objectKey maps a file's relative path onto the destination prefix.
// An empty prefix reuses the source root as given on the command line.
func objectKey(rel, sourceRoot, prefix string) string {
	base := prefix
	if base == "" {
		base = filepath.ToSlash(sourceRoot)
	}
	return path.Join(base, rel)
}

func isPlaceholder(key string) bool {
	return strings.Contains(key, placeholderMarker)
}
