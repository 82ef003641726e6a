// Package app implements the application layer for sift.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.trai.ch/sift/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// WatcherFactory creates the watcher used for a stage in watch mode.
type WatcherFactory func(cfg domain.StageConfig, log ports.Logger) (ports.Watcher, error)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	telemetry    ports.Telemetry
	stats        ports.StatsRecorder
	newWatcher   WatcherFactory
	stageOptions []StageOption
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	telemetry ports.Telemetry,
	stats ports.StatsRecorder,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		telemetry:    telemetry,
		stats:        stats,
		newWatcher:   defaultWatcher,
	}
}

func defaultWatcher(cfg domain.StageConfig, log ports.Logger) (ports.Watcher, error) {
	return watcher.NewWatcher(watcher.DefaultWindow, log, cfg.Exclude...)
}

// WithWatcherFactory replaces the filesystem watcher used by Watch.
// This is primarily used for testing.
func (a *App) WithWatcherFactory(f WatcherFactory) *App {
	a.newWatcher = f
	return a
}

// WithStageOptions applies opts to every stage the App opens.
func (a *App) WithStageOptions(opts ...StageOption) *App {
	a.stageOptions = append(a.stageOptions, opts...)
	return a
}

// SetVerbose enables debug logging when the logger supports it.
func (a *App) SetVerbose(verbose bool) {
	if v, ok := a.logger.(interface{ SetVerbose(bool) }); ok {
		v.SetVerbose(verbose)
	}
}

// Close flushes the telemetry recording.
func (a *App) Close() error {
	if a.telemetry == nil {
		return nil
	}
	return a.telemetry.Close()
}

// BuildOptions configuration for the Build method.
type BuildOptions struct {
	// ConfigPath is the configuration file to load.
	ConfigPath string
	// Stages restricts the pass to the named stages. Empty means all stages.
	Stages []string
	// MetricsFile, when set, receives the pass metrics in text exposition format.
	MetricsFile string
}

// Build runs one build pass for each selected stage, in name order.
// The first failing stage aborts the remaining ones.
func (a *App) Build(ctx context.Context, opts BuildOptions) (err error) {
	stages, project, err := a.openStages(opts.ConfigPath, opts.Stages)
	if err != nil {
		return err
	}
	defer closeStages(stages)

	if opts.MetricsFile != "" {
		defer func() {
			if writeErr := a.stats.WriteTextfile(opts.MetricsFile); writeErr != nil && err == nil {
				err = writeErr
			}
		}()
	}

	a.logger.Debug("configuration loaded", "root", project.Root, "stages", len(stages))
	for _, s := range stages {
		if err := a.runPass(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// WatchOptions configuration for the Watch method.
type WatchOptions struct {
	ConfigPath  string
	Stages      []string
	MetricsFile string
}

// Watch builds every selected stage, then rebuilds a stage whenever its source
// tree changes until ctx is cancelled. Failed passes are logged and watching
// continues.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	stages, _, err := a.openStages(opts.ConfigPath, opts.Stages)
	if err != nil {
		return err
	}
	defer closeStages(stages)

	watchers := make([]ports.Watcher, 0, len(stages))
	for _, s := range stages {
		w, err := a.newWatcher(s.Config(), a.logger)
		if err != nil {
			for _, started := range watchers {
				_ = started.Stop()
			}
			return zerr.With(zerr.Wrap(err, "failed to create watcher"), "stage", s.Config().Name)
		}
		watchers = append(watchers, w)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range stages {
		w := watchers[i]
		g.Go(func() error {
			return a.watchStage(ctx, s, w, opts.MetricsFile)
		})
	}
	return g.Wait()
}

func (a *App) watchStage(ctx context.Context, s *Stage, w ports.Watcher, metricsFile string) error {
	cfg := s.Config()
	if err := w.Start(ctx, cfg.SourceDir); err != nil {
		_ = w.Stop()
		return zerr.With(zerr.Wrap(err, "failed to start watcher"), "stage", cfg.Name)
	}
	defer func() {
		_ = w.Stop()
	}()
	stop := context.AfterFunc(ctx, func() {
		_ = w.Stop()
	})
	defer stop()

	a.logger.Info("watching for changes", "stage", cfg.Name, "source", cfg.SourceDir)
	a.rebuild(ctx, s, metricsFile)

	for paths := range w.Changes() {
		if ctx.Err() != nil {
			break
		}
		a.logger.Debug("source changed", "stage", cfg.Name, "paths", len(paths))
		a.rebuild(ctx, s, metricsFile)
	}
	return nil
}

func (a *App) rebuild(ctx context.Context, s *Stage, metricsFile string) {
	if err := a.runPass(ctx, s); err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Error(err)
	}
	if metricsFile != "" {
		if err := a.stats.WriteTextfile(metricsFile); err != nil {
			a.logger.Error(err)
		}
	}
}

func (a *App) runPass(ctx context.Context, s *Stage) error {
	stats, err := s.Build(ctx)
	a.stats.ObservePass(stats, err)
	if err != nil {
		return zerr.Wrap(err, "build pass failed")
	}

	a.logger.Info("build pass complete",
		"stage", stats.Stage,
		"pass", stats.PassID,
		"hits", stats.Hits,
		"misses", stats.Misses,
		"passthrough", stats.Passthrough,
		"evicted", stats.Evicted,
		"pruned", stats.Pruned,
		"duration", stats.Duration,
	)
	return nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	ConfigPath string
	Stages     []string
}

// Clean removes the cache directory, artifacts and index, of each selected stage.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	project, err := a.loadProject(opts.ConfigPath)
	if err != nil {
		return err
	}
	configs, err := selectStages(project, opts.Stages)
	if err != nil {
		return err
	}

	var errs error
	for _, cfg := range configs {
		a.logger.Info(fmt.Sprintf("removing cache of stage %s...", cfg.Name), "path", cfg.CacheDir)
		if err := os.RemoveAll(cfg.CacheDir); err != nil {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove cache"), "stage", cfg.Name))
			continue
		}
		a.logger.Info(fmt.Sprintf("removed cache of stage %s", cfg.Name))
	}
	return errs
}

func (a *App) loadProject(path string) (*domain.Project, error) {
	project, err := a.configLoader.Load(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return project, nil
}

func (a *App) openStages(path string, names []string) ([]*Stage, *domain.Project, error) {
	project, err := a.loadProject(path)
	if err != nil {
		return nil, nil, err
	}
	configs, err := selectStages(project, names)
	if err != nil {
		return nil, nil, err
	}

	opts := append([]StageOption{WithWorkDir(project.Root)}, a.stageOptions...)
	stages := make([]*Stage, 0, len(configs))
	for _, cfg := range configs {
		s, err := OpenStage(cfg, a.logger, a.telemetry, opts...)
		if err != nil {
			closeStages(stages)
			return nil, nil, zerr.Wrap(err, "failed to open stage")
		}
		stages = append(stages, s)
	}
	return stages, project, nil
}

func selectStages(project *domain.Project, names []string) ([]domain.StageConfig, error) {
	if len(names) == 0 {
		return project.Stages, nil
	}

	configs := make([]domain.StageConfig, 0, len(names))
	for _, name := range names {
		cfg, ok := project.Stage(name)
		if !ok {
			return nil, zerr.With(zerr.Wrap(domain.ErrUnknownStage, "cannot select stage"), "stage", name)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func closeStages(stages []*Stage) {
	for _, s := range stages {
		_ = s.Close()
	}
}
