package domain

import (
	"path"
	"path/filepath"
	"strings"
)

// RelativePath is a slash-separated path relative to a tree root.
// Directories carry a trailing slash.
type RelativePath string

// NewRelativePath converts an OS-specific relative path into a RelativePath.
func NewRelativePath(p string, isDir bool) RelativePath {
	s := filepath.ToSlash(p)
	if isDir && !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return RelativePath(s)
}

// String returns the path as a plain string.
func (p RelativePath) String() string {
	return string(p)
}

// IsDir reports whether the path denotes a directory.
func (p RelativePath) IsDir() bool {
	return strings.HasSuffix(string(p), "/")
}

// Dir returns the parent directory of the path, without a trailing slash.
// It returns "." for top level entries.
func (p RelativePath) Dir() string {
	return path.Dir(strings.TrimSuffix(string(p), "/"))
}

// Under joins the path onto an OS root directory.
func (p RelativePath) Under(root string) string {
	return filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(string(p), "/")))
}

// PathSet is a set of relative paths.
type PathSet map[RelativePath]struct{}

// NewPathSet builds a set from the given paths.
func NewPathSet(paths ...RelativePath) PathSet {
	s := make(PathSet, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

// Add inserts p into the set.
func (s PathSet) Add(p RelativePath) {
	s[p] = struct{}{}
}

// Has reports whether p is in the set.
func (s PathSet) Has(p RelativePath) bool {
	_, ok := s[p]
	return ok
}
