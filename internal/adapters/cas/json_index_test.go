package cas_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sift/internal/adapters/cas"
	"go.trai.ch/sift/internal/core/domain"
)

func TestJSONIndex_RoundTrip(t *testing.T) {
	memFs := afero.NewMemMapFs()
	index := cas.NewJSONIndex("/cache/index.json", cas.WithFs(memFs))

	entries, next, err := index.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, next)

	want := map[domain.RelativePath]domain.CacheEntry{
		"docs/a.md": {
			InputPath:   "docs/a.md",
			OutputPath:  "docs/a.html",
			Fingerprint: domain.Fingerprint{Size: 3, Mode: 0o644, MTime: 99, Digest: 1<<63 + 5},
			Artifact:    "00000004",
		},
	}
	require.NoError(t, index.Save(want, 5))

	exists, err := afero.Exists(memFs, "/cache/index.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists, "temporary file is renamed into place")

	got, next, err := index.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, uint64(5), next)
	require.NoError(t, index.Close())
}

func TestJSONIndex_DiscardsOtherVersions(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/index.json",
		[]byte(`{"version": 0, "next": 9, "entries": [{"input_path": "a.md"}]}`), 0o644))

	entries, next, err := cas.NewJSONIndex("/index.json", cas.WithFs(memFs)).Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, next)
}

func TestJSONIndex_EmptyFile(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/index.json", nil, 0o644))

	entries, _, err := cas.NewJSONIndex("/index.json", cas.WithFs(memFs)).Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestJSONIndex_Corrupt(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/index.json", []byte("{not json"), 0o644))

	_, _, err := cas.NewJSONIndex("/index.json", cas.WithFs(memFs)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal cache index")
}
