// Package fs provides file system adapters for walking, fingerprinting and materializing files.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.TreeWalker = (*Walker)(nil)

// Walker provides tree enumeration.
type Walker struct {
	excludes []string
}

// NewWalker creates a new Walker. Entries whose base name matches one of the
// exclude patterns are skipped, together with everything below them.
func NewWalker(excludes ...string) *Walker {
	return &Walker{excludes: excludes}
}

// Walk yields every file and directory below root as a relative path.
// filepath.WalkDir visits siblings in lexical order and parents before children.
func (w *Walker) Walk(root string) iter.Seq2[domain.RelativePath, error] {
	return func(yield func(domain.RelativePath, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to walk source tree"), "path", path)
			}
			if path == root {
				return nil
			}

			if w.shouldSkip(d) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", path)
			}

			if !yield(domain.NewRelativePath(rel, d.IsDir()), nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}

// shouldSkip checks if an entry matches one of the exclude patterns.
func (w *Walker) shouldSkip(d fs.DirEntry) bool {
	name := d.Name()
	for _, pattern := range w.excludes {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}
