// Package cas stores the cache entries and output artifacts of a stage.
package cas

import (
	"maps"
	"sync"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CacheStore = (*Store)(nil)

// Store implements ports.CacheStore in memory, optionally backed by a ports.CacheIndex.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.RelativePath]domain.CacheEntry

	artifacts *Artifacts
	index     ports.CacheIndex
}

// NewStore creates a Store over artifacts. A nil index keeps entries in memory only.
// Loaded entries whose artifact is gone are dropped and artifacts no entry
// refers to are removed, so every remaining entry points at an existing file.
func NewStore(artifacts *Artifacts, index ports.CacheIndex) (*Store, error) {
	s := &Store{
		entries:   make(map[domain.RelativePath]domain.CacheEntry),
		artifacts: artifacts,
		index:     index,
	}

	if index != nil {
		entries, next, err := index.Load()
		if err != nil {
			return nil, zerr.Wrap(err, "failed to load cache index")
		}
		for key, entry := range entries {
			if artifacts.Exists(entry.Artifact) {
				s.entries[key] = entry
			}
		}
		artifacts.Resume(next)
	}

	keep := make(map[string]struct{}, len(s.entries))
	for _, entry := range s.entries {
		keep[entry.Artifact] = struct{}{}
	}
	if _, err := artifacts.Sweep(keep); err != nil {
		return nil, err
	}

	return s, nil
}

// Artifacts returns the artifact store the entries refer to.
func (s *Store) Artifacts() *Artifacts {
	return s.artifacts
}

// Get returns the entry stored under key.
func (s *Store) Get(key domain.RelativePath) (domain.CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok
}

// Set stores entry under key.
func (s *Store) Set(key domain.RelativePath, entry domain.CacheEntry) domain.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return entry
}

// Delete removes key.
func (s *Store) Delete(key domain.RelativePath) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// RetainOnly removes every entry whose key is not in keys and returns the removed entries.
func (s *Store) RetainOnly(keys domain.PathSet) []domain.CacheEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []domain.CacheEntry
	for key, entry := range s.entries {
		if !keys.Has(key) {
			removed = append(removed, entry)
			delete(s.entries, key)
		}
	}
	return removed
}

// Keys returns the stored keys in unspecified order.
func (s *Store) Keys() []domain.RelativePath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]domain.RelativePath, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Save writes the entries to the index, if there is one.
func (s *Store) Save() error {
	if s.index == nil {
		return nil
	}

	s.mu.RLock()
	snapshot := maps.Clone(s.entries)
	s.mu.RUnlock()

	if err := s.index.Save(snapshot, s.artifacts.Next()); err != nil {
		return zerr.Wrap(err, "failed to save cache index")
	}
	return nil
}

// Close releases the index.
func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}
