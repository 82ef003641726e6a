package ports

import "go.trai.ch/sift/internal/core/domain"

// CacheStore maps relative input paths to cache entries.
// Iteration order is unspecified.
type CacheStore interface {
	// Get returns the entry for key, if any.
	Get(key domain.RelativePath) (domain.CacheEntry, bool)
	// Set stores entry under key, replacing any previous entry, and returns it.
	Set(key domain.RelativePath, entry domain.CacheEntry) domain.CacheEntry
	// Delete removes key. Deleting a missing key is a no-op.
	Delete(key domain.RelativePath)
	// RetainOnly removes every key not in keys and returns the removed entries.
	RetainOnly(keys domain.PathSet) []domain.CacheEntry
	// Keys returns the stored keys.
	Keys() []domain.RelativePath
	// Len returns the number of stored entries.
	Len() int
	// Save flushes the store to its persistent index, if it has one.
	Save() error
}

// CacheIndex persists cache entries between runs.
type CacheIndex interface {
	// Load returns the persisted entries and the next free artifact sequence number.
	Load() (map[domain.RelativePath]domain.CacheEntry, uint64, error)
	// Save replaces the persisted entries.
	Save(entries map[domain.RelativePath]domain.CacheEntry, next uint64) error
	// Close releases resources held by the index.
	Close() error
}

// ArtifactStore owns the directory of cached output snapshots.
type ArtifactStore interface {
	// Snapshot captures the file at absPath as a new artifact and returns its name.
	Snapshot(absPath string) (string, error)
	// Path returns the absolute path of the named artifact.
	Path(name string) string
	// Remove deletes the named artifact. Removing a missing artifact is a no-op.
	Remove(name string) error
	// Exists reports whether the named artifact is present.
	Exists(name string) bool
}
