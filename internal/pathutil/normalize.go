package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// Extension returns the part of the final path segment after its last dot,
// or "" when the segment has no dot.
func Extension(path string) string {
	name := filepath.Base(path)
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

// HasExtension reports whether path ends in the given extension, ignoring case.
// ext is given without the leading dot.
func HasExtension(path, ext string) bool {
	if ext == "" {
		return false
	}
	return strings.EqualFold(Extension(path), strings.TrimPrefix(ext, "."))
}

// IsHidden reports whether a directory entry name starts with a dot.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
