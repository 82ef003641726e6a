package cas

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	siftfs "go.trai.ch/sift/internal/adapters/fs"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// ObjectsDir is the directory below the cache dir that holds artifacts.
const ObjectsDir = "objects"

var _ ports.ArtifactStore = (*Artifacts)(nil)

// Artifacts manages output snapshots named by a monotonic sequence number.
type Artifacts struct {
	dir      string
	hardlink bool

	mu   sync.Mutex
	next uint64
}

// ArtifactsOption configures Artifacts.
type ArtifactsOption func(*Artifacts)

// WithLinkStrategy matches snapshots to the strategy outputs are placed with.
// Only hardlink placement shares inodes between outputs and artifacts.
func WithLinkStrategy(link domain.LinkStrategy) ArtifactsOption {
	return func(a *Artifacts) {
		a.hardlink = link == domain.LinkHardlink
	}
}

// NewArtifacts creates the artifact directory below cacheDir.
func NewArtifacts(cacheDir string, opts ...ArtifactsOption) (*Artifacts, error) {
	dir := filepath.Join(cacheDir, ObjectsDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", domain.ErrIO, err), "failed to create artifact directory"), "path", dir)
	}
	a := &Artifacts{dir: dir, next: 1}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Dir returns the artifact directory.
func (a *Artifacts) Dir() string {
	return a.dir
}

// Snapshot captures absPath as a new artifact. The bytes are copied unless
// the hardlink strategy is in effect.
func (a *Artifacts) Snapshot(absPath string) (string, error) {
	a.mu.Lock()
	name := fmt.Sprintf("%08d", a.next)
	a.next++
	a.mu.Unlock()

	dst := a.Path(name)
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", a.ioError(err, "failed to clear artifact slot", dst)
	}
	if a.hardlink && os.Link(absPath, dst) == nil {
		return name, nil
	}
	if err := siftfs.CopyFile(absPath, dst); err != nil {
		return "", zerr.With(a.ioError(err, "failed to snapshot output", dst), "source", absPath)
	}
	return name, nil
}

// Path returns the absolute path of the named artifact.
func (a *Artifacts) Path(name string) string {
	return filepath.Join(a.dir, name)
}

// Exists reports whether the named artifact is present.
func (a *Artifacts) Exists(name string) bool {
	if name == "" {
		return false
	}
	_, err := os.Lstat(a.Path(name))
	return err == nil
}

// Remove deletes the named artifact.
func (a *Artifacts) Remove(name string) error {
	if name == "" {
		return nil
	}
	if err := os.Remove(a.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return a.ioError(err, "failed to remove artifact", a.Path(name))
	}
	return nil
}

// Next returns the sequence number the next snapshot will use.
func (a *Artifacts) Next() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Resume moves the sequence forward to at least next.
func (a *Artifacts) Resume(next uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = max(a.next, next)
}

// Sweep removes every artifact not named in keep and returns how many were removed.
// The sequence is advanced past every kept numeric name.
func (a *Artifacts) Sweep(keep map[string]struct{}) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, a.ioError(err, "failed to list artifacts", a.dir)
	}

	removed := 0
	for _, e := range entries {
		name := e.Name()
		if _, ok := keep[name]; ok {
			if n, err := strconv.ParseUint(name, 10, 64); err == nil {
				a.Resume(n + 1)
			}
			continue
		}
		if err := os.RemoveAll(a.Path(name)); err != nil {
			return removed, a.ioError(err, "failed to remove orphaned artifact", a.Path(name))
		}
		removed++
	}
	return removed, nil
}

func (a *Artifacts) ioError(err error, msg, path string) error {
	return zerr.With(zerr.Wrap(fmt.Errorf("%w: %w", domain.ErrIO, err), msg), "path", path)
}
