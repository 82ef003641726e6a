package app_test

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/sift/internal/adapters/logger"
	"go.trai.ch/sift/internal/adapters/metrics"
	"go.trai.ch/sift/internal/adapters/telemetry/progrock"
	"go.trai.ch/sift/internal/app"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/sift/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const configPath = "sift.yaml"

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	app     *app.App
	loader  *mocks.MockConfigLoader
	logs    *syncBuffer
	project *domain.Project
}

func newFixture(t *testing.T, stages ...string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	root := t.TempDir()
	project := &domain.Project{Root: root}
	for _, name := range stages {
		project.Stages = append(project.Stages, stageConfig(t, root, name))
	}

	logs := &syncBuffer{}
	log := logger.NewWithWriter(logs, slog.LevelInfo)
	loader := mocks.NewMockConfigLoader(ctrl)

	return &fixture{
		app:     app.New(loader, log, progrock.New(), metrics.NewRecorder(nil)),
		loader:  loader,
		logs:    logs,
		project: project,
	}
}

func (f *fixture) stage(name string) domain.StageConfig {
	cfg, _ := f.project.Stage(name)
	return cfg
}

func countingTransformer(calls map[string]int) ports.Transformer {
	var mu sync.Mutex
	return ports.TransformerFunc(func(_ context.Context, contents, relativePath string) (string, error) {
		mu.Lock()
		calls[relativePath]++
		mu.Unlock()
		return strings.ReplaceAll(contents, "dogs", "cats"), nil
	})
}

func TestApp_Build_AllStages(t *testing.T) {
	f := newFixture(t, "docs", "site")
	writeSource(t, f.stage("docs"), "README.md", "docs about dogs")
	writeSource(t, f.stage("site"), "index.md", "site about dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	err := f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath})
	require.NoError(t, err)

	assert.Equal(t, "docs about cats", readDest(t, f.stage("docs"), "README.md"))
	assert.Equal(t, "site about cats", readDest(t, f.stage("site"), "index.md"))
	assert.Equal(t, 2, strings.Count(f.logs.String(), "build pass complete"))
}

func TestApp_Build_SelectedStage(t *testing.T) {
	f := newFixture(t, "docs", "site")
	writeSource(t, f.stage("docs"), "README.md", "dogs")
	writeSource(t, f.stage("site"), "index.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	err := f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath, Stages: []string{"site"}})
	require.NoError(t, err)

	assert.Equal(t, "cats", readDest(t, f.stage("site"), "index.md"))
	assert.NoDirExists(t, f.stage("docs").DestDir)
}

func TestApp_Build_UnknownStage(t *testing.T) {
	f := newFixture(t, "docs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	err := f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath, Stages: []string{"nope"}})
	require.ErrorIs(t, err, domain.ErrUnknownStage)
}

func TestApp_Build_ConfigurationError(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(configPath).Return(nil, domain.ErrInvalidConfig)

	err := f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath})
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_Build_TransformFailure(t *testing.T) {
	f := newFixture(t, "docs")
	writeSource(t, f.stage("docs"), "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	cause := errors.New("no cats available")
	f.app.WithStageOptions(app.WithTransformer(ports.TransformerFunc(func(context.Context, string, string) (string, error) {
		return "", cause
	})))

	metricsFile := filepath.Join(t.TempDir(), "sift.prom")
	err := f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath, MetricsFile: metricsFile})
	require.ErrorIs(t, err, cause)

	var te *domain.TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.RelativePath("README.md"), te.File)

	data, readErr := os.ReadFile(metricsFile)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), `sift_passes_total{outcome="failure",stage="docs"} 1`)
}

func TestApp_Build_WritesMetricsFile(t *testing.T) {
	f := newFixture(t, "docs")
	writeSource(t, f.stage("docs"), "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil).Times(2)

	metricsFile := filepath.Join(t.TempDir(), "sift.prom")
	opts := app.BuildOptions{ConfigPath: configPath, MetricsFile: metricsFile}
	require.NoError(t, f.app.Build(context.Background(), opts))
	require.NoError(t, f.app.Build(context.Background(), opts))

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `sift_passes_total{outcome="success",stage="docs"} 2`)
	assert.Contains(t, text, `sift_paths_total{stage="docs",state="hit"} 1`)
	assert.Contains(t, text, `sift_paths_total{stage="docs",state="miss"} 1`)
}

func TestApp_SetVerbose(t *testing.T) {
	f := newFixture(t, "docs")
	writeSource(t, f.stage("docs"), "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	f.app.SetVerbose(true)
	require.NoError(t, f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath}))

	logs := f.logs.String()
	assert.Contains(t, logs, "configuration loaded")
	assert.Contains(t, logs, "cache prime")
}

func TestApp_Clean(t *testing.T) {
	f := newFixture(t, "docs", "site")
	writeSource(t, f.stage("docs"), "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil).Times(2)

	require.NoError(t, f.app.Build(context.Background(), app.BuildOptions{ConfigPath: configPath}))
	require.DirExists(t, f.stage("docs").CacheDir)

	require.NoError(t, f.app.Clean(context.Background(), app.CleanOptions{ConfigPath: configPath}))

	assert.NoDirExists(t, f.stage("docs").CacheDir)
	assert.NoDirExists(t, f.stage("site").CacheDir)
	assert.Equal(t, "cats", readDest(t, f.stage("docs"), "README.md"), "outputs are left alone")
	assert.Contains(t, f.logs.String(), "removed cache of stage docs")
}

func TestApp_Watch_RebuildsOnChange(t *testing.T) {
	f := newFixture(t, "docs")
	docs := f.stage("docs")
	writeSource(t, docs, "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	calls := make(map[string]int)
	f.app.WithStageOptions(app.WithTransformer(countingTransformer(calls)))

	ctrl := gomock.NewController(t)
	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), docs.SourceDir).Return(nil)
	w.EXPECT().Changes().Return(iter.Seq[[]string](func(yield func([]string) bool) {
		path := filepath.Join(docs.SourceDir, "CONTRIBUTING.md")
		if err := os.WriteFile(path, []byte("walk the dogs"), 0o600); err != nil {
			t.Error(err)
			return
		}
		yield([]string{path})
	}))
	w.EXPECT().Stop().Return(nil).AnyTimes()

	f.app.WithWatcherFactory(func(cfg domain.StageConfig, _ ports.Logger) (ports.Watcher, error) {
		assert.Equal(t, "docs", cfg.Name)
		return w, nil
	})

	err := f.app.Watch(context.Background(), app.WatchOptions{ConfigPath: configPath})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"README.md": 1, "CONTRIBUTING.md": 1}, calls)
	assert.Equal(t, "walk the cats", readDest(t, docs, "CONTRIBUTING.md"))
	assert.Contains(t, f.logs.String(), "watching for changes")
}

func TestApp_Watch_ContinuesAfterFailedPass(t *testing.T) {
	f := newFixture(t, "docs")
	docs := f.stage("docs")
	writeSource(t, docs, "README.md", "dogs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	attempts := 0
	f.app.WithStageOptions(app.WithTransformer(ports.TransformerFunc(func(_ context.Context, contents, _ string) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("first attempt fails")
		}
		return strings.ToUpper(contents), nil
	})))

	ctrl := gomock.NewController(t)
	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), gomock.Any()).Return(nil)
	w.EXPECT().Changes().Return(iter.Seq[[]string](func(yield func([]string) bool) {
		yield([]string{filepath.Join(docs.SourceDir, "README.md")})
	}))
	w.EXPECT().Stop().Return(nil).AnyTimes()
	f.app.WithWatcherFactory(func(domain.StageConfig, ports.Logger) (ports.Watcher, error) {
		return w, nil
	})

	require.NoError(t, f.app.Watch(context.Background(), app.WatchOptions{ConfigPath: configPath}))

	assert.Equal(t, 2, attempts)
	assert.Equal(t, "DOGS", readDest(t, docs, "README.md"))
	assert.Contains(t, f.logs.String(), "first attempt fails")
}

func TestApp_Watch_WatcherStartFailure(t *testing.T) {
	f := newFixture(t, "docs")
	f.loader.EXPECT().Load(configPath).Return(f.project, nil)

	ctrl := gomock.NewController(t)
	w := mocks.NewMockWatcher(ctrl)
	w.EXPECT().Start(gomock.Any(), gomock.Any()).Return(domain.ErrIO)
	w.EXPECT().Stop().Return(nil).AnyTimes()
	f.app.WithWatcherFactory(func(domain.StageConfig, ports.Logger) (ports.Watcher, error) {
		return w, nil
	})

	err := f.app.Watch(context.Background(), app.WatchOptions{ConfigPath: configPath})
	require.ErrorIs(t, err, domain.ErrIO)
}

func TestApp_Close(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.app.Close())
}
