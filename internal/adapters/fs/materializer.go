package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	dirPerm  = 0o750
	filePerm = 0o644
)

var _ ports.Materializer = (*Materializer)(nil)

// Materializer writes the destination tree of a stage.
// Existing destination entries are always removed before anything is placed,
// so writes never go through a link into a source file or an artifact.
type Materializer struct {
	root     string
	strategy domain.LinkStrategy
	codec    ports.TextCodec
}

// NewMaterializer creates a Materializer rooted at destDir.
// The codec encodes transformed contents before they are written.
func NewMaterializer(destDir string, strategy domain.LinkStrategy, codec ports.TextCodec) *Materializer {
	if strategy == "" {
		strategy = domain.LinkSymlink
	}
	return &Materializer{root: destDir, strategy: strategy, codec: codec}
}

// Abs returns the absolute destination path of rel.
func (m *Materializer) Abs(rel domain.RelativePath) string {
	return rel.Under(m.root)
}

// MkdirAll ensures the destination directory for rel exists.
// A non-directory occupying the path is replaced.
func (m *Materializer) MkdirAll(rel domain.RelativePath) error {
	dst := m.Abs(rel)
	if info, err := os.Lstat(dst); err == nil && !info.IsDir() {
		if err := os.Remove(dst); err != nil {
			return ioError(err, "failed to replace file with directory", dst)
		}
	}
	if err := os.MkdirAll(dst, dirPerm); err != nil {
		return ioError(err, "failed to create directory", dst)
	}
	return nil
}

// Passthrough exposes absSrc unchanged at rel.
func (m *Materializer) Passthrough(absSrc string, rel domain.RelativePath) error {
	return m.link(absSrc, m.Abs(rel))
}

// LinkFromArtifact exposes the artifact at absArtifact at rel.
func (m *Materializer) LinkFromArtifact(absArtifact string, rel domain.RelativePath) error {
	return m.link(absArtifact, m.Abs(rel))
}

// WriteOutput encodes contents and writes them to rel.
func (m *Materializer) WriteOutput(rel domain.RelativePath, contents string) error {
	dst := m.Abs(rel)

	data, err := m.codec.Encode(contents)
	if err != nil {
		return zerr.With(zerr.With(zerr.Wrap(err, "failed to encode output"), "path", dst), "encoding", m.codec.Name())
	}

	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return ioError(err, "failed to create parent directory", dst)
	}
	if err := removeExisting(dst); err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, filePerm); err != nil {
		return ioError(err, "failed to write output", dst)
	}
	return nil
}

// link places src at dst using the configured strategy.
// A placement failing because the parent is missing creates it and retries once.
func (m *Materializer) link(src, dst string) error {
	if err := removeExisting(dst); err != nil {
		return err
	}

	err := m.place(src, dst)
	if errors.Is(err, fs.ErrNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(dst), dirPerm); mkErr != nil {
			return ioError(mkErr, "failed to create parent directory", dst)
		}
		err = m.place(src, dst)
	}
	if err != nil {
		return zerr.With(ioError(err, "failed to place file", dst), "source", src)
	}
	return nil
}

func (m *Materializer) place(src, dst string) error {
	var err error
	switch m.strategy {
	case domain.LinkSymlink:
		err = os.Symlink(src, dst)
	case domain.LinkHardlink:
		err = os.Link(src, dst)
	default:
		return CopyFile(src, dst)
	}
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return err
	}
	// Links are not supported everywhere, e.g. across devices.
	return CopyFile(src, dst)
}

// CopyFile copies the contents and permission bits of src to dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Best effort close in defer

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm()) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func removeExisting(dst string) error {
	info, err := os.Lstat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return ioError(err, "failed to inspect destination", dst)
	}
	if info.IsDir() {
		err = os.RemoveAll(dst)
	} else {
		err = os.Remove(dst)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError(err, "failed to remove destination", dst)
	}
	return nil
}

func ioError(err error, msg, path string) error {
	return zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", domain.ErrIO, err), msg), "path", path)
}

// Prune removes every destination entry not in keep. Directories are keyed
// with a trailing slash; removing a directory removes everything below it.
func (m *Materializer) Prune(keep domain.PathSet) (int, error) {
	removed := 0
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return ioError(err, "failed to walk destination", path)
		}
		if path == m.root {
			return nil
		}

		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return ioError(err, "failed to relativize destination path", path)
		}
		if keep.Has(domain.NewRelativePath(rel, d.IsDir())) {
			return nil
		}

		if err := os.RemoveAll(path); err != nil {
			return ioError(err, "failed to prune destination entry", path)
		}
		removed++
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	return removed, err
}
