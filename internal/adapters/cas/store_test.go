package cas_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sift/internal/adapters/cas"
	"go.trai.ch/sift/internal/core/domain"
)

func newEntry(t *testing.T, a *cas.Artifacts, input, output, content string) domain.CacheEntry {
	t.Helper()
	src := filepath.Join(t.TempDir(), "out")
	writeFile(t, src, content)
	name, err := a.Snapshot(src)
	require.NoError(t, err)
	return domain.CacheEntry{
		InputPath:   domain.RelativePath(input),
		OutputPath:  domain.RelativePath(output),
		Fingerprint: domain.Fingerprint{Size: uint64(len(content)), Mode: 0o644, MTime: 42},
		Artifact:    name,
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	a, err := cas.NewArtifacts(t.TempDir())
	require.NoError(t, err)
	store, err := cas.NewStore(a, nil)
	require.NoError(t, err)

	_, ok := store.Get("README.md")
	assert.False(t, ok)

	entry := newEntry(t, a, "README.md", "README.md", "cats")
	assert.Equal(t, entry, store.Set("README.md", entry))

	got, ok := store.Get("README.md")
	require.True(t, ok)
	assert.Equal(t, entry, got)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, []domain.RelativePath{"README.md"}, store.Keys())

	store.Delete("README.md")
	store.Delete("README.md")
	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Save(), "saving without an index is a no-op")
	require.NoError(t, store.Close())
}

func TestStore_RetainOnly(t *testing.T) {
	a, err := cas.NewArtifacts(t.TempDir())
	require.NoError(t, err)
	store, err := cas.NewStore(a, nil)
	require.NoError(t, err)

	for _, p := range []string{"a.md", "b.md", "c.md"} {
		store.Set(domain.RelativePath(p), newEntry(t, a, p, p, p))
	}

	removed := store.RetainOnly(domain.NewPathSet("a.md", "c.md", "z.md"))
	require.Len(t, removed, 1)
	assert.Equal(t, domain.RelativePath("b.md"), removed[0].InputPath)

	keys := store.Keys()
	slices.Sort(keys)
	assert.Equal(t, []domain.RelativePath{"a.md", "c.md"}, keys)

	assert.Empty(t, store.RetainOnly(domain.NewPathSet("a.md", "c.md")))
}

func TestStore_MemoryModeSweepsLeftovers(t *testing.T) {
	cacheDir := t.TempDir()
	a, err := cas.NewArtifacts(cacheDir)
	require.NoError(t, err)
	writeFile(t, a.Path("00000001"), "stale")

	_, err = cas.NewStore(a, nil)
	require.NoError(t, err)
	assert.False(t, a.Exists("00000001"))
}

func TestStore_Persistence(t *testing.T) {
	indexes := map[string]func(t *testing.T, cacheDir string) domainIndex{
		"json": func(_ *testing.T, cacheDir string) domainIndex {
			return cas.NewJSONIndex(filepath.Join(cacheDir, cas.JSONIndexFile))
		},
		"sqlite": func(t *testing.T, cacheDir string) domainIndex {
			index, err := cas.NewSQLiteIndex(filepath.Join(cacheDir, cas.SQLiteIndexFile))
			require.NoError(t, err)
			return index
		},
	}

	for name, open := range indexes {
		t.Run(name, func(t *testing.T) {
			cacheDir := t.TempDir()

			// 1. Create store and save data
			a1, err := cas.NewArtifacts(cacheDir)
			require.NoError(t, err)
			store1, err := cas.NewStore(a1, open(t, cacheDir))
			require.NoError(t, err)

			kept := store1.Set("README.md", newEntry(t, a1, "README.md", "README.md", "cats"))
			lost := store1.Set("gone.md", newEntry(t, a1, "gone.md", "gone.md", "gone"))
			require.NoError(t, store1.Save())
			require.NoError(t, store1.Close())

			// Artifact disappears between runs.
			require.NoError(t, a1.Remove(lost.Artifact))
			writeFile(t, a1.Path("orphan"), "nobody owns me")

			// 2. Reopen and verify
			a2, err := cas.NewArtifacts(cacheDir)
			require.NoError(t, err)
			store2, err := cas.NewStore(a2, open(t, cacheDir))
			require.NoError(t, err)
			defer store2.Close() //nolint:errcheck // Best effort cleanup in test

			got, ok := store2.Get("README.md")
			require.True(t, ok)
			assert.Equal(t, kept, got)

			_, ok = store2.Get("gone.md")
			assert.False(t, ok, "entries without artifacts are dropped")
			assert.False(t, a2.Exists("orphan"), "orphaned artifacts are removed")
			assert.Equal(t, uint64(3), a2.Next(), "sequence resumes after the last snapshot")
		})
	}
}

type domainIndex interface {
	Load() (map[domain.RelativePath]domain.CacheEntry, uint64, error)
	Save(entries map[domain.RelativePath]domain.CacheEntry, next uint64) error
	Close() error
}
