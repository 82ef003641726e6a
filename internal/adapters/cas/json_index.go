package cas

import (
	"encoding/json"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// IndexVersion is bumped whenever the persisted layout changes.
// Indexes written with another version are discarded on load.
const IndexVersion = 1

// JSONIndexFile is the file name of the JSON index inside the cache dir.
const JSONIndexFile = "index.json"

var _ ports.CacheIndex = (*JSONIndex)(nil)

// Option configures a JSONIndex.
type Option func(*JSONIndex)

// WithFs sets the filesystem used for reading and writing the index.
//
// Example:
//
//	index := cas.NewJSONIndex(".sift/index.json", cas.WithFs(afero.NewMemMapFs()))
func WithFs(fs afero.Fs) Option {
	return func(i *JSONIndex) {
		i.fs = fs
	}
}

// JSONIndex persists cache entries in a single JSON document.
type JSONIndex struct {
	fs   afero.Fs
	path string
}

type indexDocument struct {
	Version int                 `json:"version"`
	Next    uint64              `json:"next"`
	Entries []domain.CacheEntry `json:"entries"`
}

// NewJSONIndex creates a JSONIndex stored at path.
func NewJSONIndex(path string, opts ...Option) *JSONIndex {
	i := &JSONIndex{fs: afero.NewOsFs(), path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Load reads the index. A missing, empty or outdated index yields no entries.
func (i *JSONIndex) Load() (map[domain.RelativePath]domain.CacheEntry, uint64, error) {
	entries := make(map[domain.RelativePath]domain.CacheEntry)

	exists, err := afero.Exists(i.fs, i.path)
	if err != nil {
		return nil, 0, zerr.With(zerr.Wrap(err, "failed to check cache index"), "path", i.path)
	}
	if !exists {
		return entries, 0, nil
	}

	data, err := afero.ReadFile(i.fs, i.path)
	if err != nil {
		return nil, 0, zerr.With(zerr.Wrap(err, "failed to read cache index"), "path", i.path)
	}
	if len(data) == 0 {
		return entries, 0, nil
	}

	var doc indexDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, zerr.With(zerr.Wrap(err, "failed to unmarshal cache index"), "path", i.path)
	}
	if doc.Version != IndexVersion {
		return entries, 0, nil
	}

	for _, entry := range doc.Entries {
		entries[entry.InputPath] = entry
	}
	return entries, doc.Next, nil
}

// Save replaces the index atomically.
func (i *JSONIndex) Save(entries map[domain.RelativePath]domain.CacheEntry, next uint64) error {
	doc := indexDocument{Version: IndexVersion, Next: next, Entries: make([]domain.CacheEntry, 0, len(entries))}
	for _, entry := range entries {
		doc.Entries = append(doc.Entries, entry)
	}
	slices.SortFunc(doc.Entries, func(a, b domain.CacheEntry) int {
		return strings.Compare(string(a.InputPath), string(b.InputPath))
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal cache index")
	}

	if err := i.fs.MkdirAll(filepath.Dir(i.path), 0o750); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create directory for cache index"), "path", i.path)
	}

	tmp := i.path + ".tmp"
	if err := afero.WriteFile(i.fs, tmp, data, 0o644); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write cache index"), "path", tmp)
	}
	if err := i.fs.Rename(tmp, i.path); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to replace cache index"), "path", i.path)
	}
	return nil
}

// Close is a no-op.
func (i *JSONIndex) Close() error {
	return nil
}
