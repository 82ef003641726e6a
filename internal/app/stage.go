package app

import (
	"context"
	"path/filepath"

	"go.trai.ch/sift/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/sift/internal/adapters/codec"     //nolint:depguard // Wired in app layer
	"go.trai.ch/sift/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/sift/internal/adapters/transform" //nolint:depguard // Wired in app layer
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/sift/internal/engine/builder"
	"go.trai.ch/sift/internal/engine/destination"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
)

// Stage is an opened pipeline stage: its builder plus the cache it owns.
// At most one build pass runs per Stage at a time.
type Stage struct {
	cfg     domain.StageConfig
	builder *builder.Builder
	store   *cas.Store
	sem     *semaphore.Weighted
}

// StageOption configures OpenStage.
type StageOption func(*stageOptions)

type stageOptions struct {
	transformer ports.Transformer
	workDir     string
}

// WithTransformer replaces the transformer declared in the stage configuration.
func WithTransformer(t ports.Transformer) StageOption {
	return func(o *stageOptions) {
		o.transformer = t
	}
}

// WithWorkDir sets the directory command transformers run in.
// It defaults to the stage source directory.
func WithWorkDir(dir string) StageOption {
	return func(o *stageOptions) {
		o.workDir = dir
	}
}

// OpenStage builds the adapters described by cfg and restores its cache.
func OpenStage(cfg domain.StageConfig, log ports.Logger, telemetry ports.Telemetry, opts ...StageOption) (*Stage, error) {
	o := stageOptions{workDir: cfg.SourceDir}
	for _, opt := range opts {
		opt(&o)
	}

	inputCodec, err := codec.New(cfg.InputEncoding)
	if err != nil {
		return nil, zerr.With(err, "stage", cfg.Name)
	}
	outputCodec, err := codec.New(cfg.OutputEncoding)
	if err != nil {
		return nil, zerr.With(err, "stage", cfg.Name)
	}

	transformer := o.transformer
	if transformer == nil {
		transformer, err = transform.New(cfg.Transform, o.workDir, log)
		if err != nil {
			return nil, zerr.With(err, "stage", cfg.Name)
		}
	}

	artifacts, err := cas.NewArtifacts(cfg.CacheDir, cas.WithLinkStrategy(cfg.Link))
	if err != nil {
		return nil, zerr.With(err, "stage", cfg.Name)
	}

	index, err := openIndex(cfg)
	if err != nil {
		return nil, zerr.With(err, "stage", cfg.Name)
	}

	store, err := cas.NewStore(artifacts, index)
	if err != nil {
		if index != nil {
			_ = index.Close()
		}
		return nil, zerr.With(err, "stage", cfg.Name)
	}

	b, err := builder.New(transformer, builder.Deps{
		Stage:         cfg.Name,
		SourceDir:     cfg.SourceDir,
		Walker:        fs.NewWalker(cfg.Exclude...),
		Fingerprinter: fs.NewFingerprinter(cfg.Fingerprint),
		Resolver:      destination.NewResolver(cfg.Extensions, cfg.TargetExtension, cfg.Include...),
		Store:         store,
		Artifacts:     artifacts,
		Materializer:  fs.NewMaterializer(cfg.DestDir, cfg.Link, outputCodec),
		InputCodec:    inputCodec,
		Logger:        log,
		Telemetry:     telemetry,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &Stage{
		cfg:     cfg,
		builder: b,
		store:   store,
		sem:     semaphore.NewWeighted(1),
	}, nil
}

func openIndex(cfg domain.StageConfig) (ports.CacheIndex, error) {
	switch cfg.Persist {
	case domain.PersistJSON:
		return cas.NewJSONIndex(filepath.Join(cfg.CacheDir, cas.JSONIndexFile)), nil
	case domain.PersistSQLite:
		return cas.NewSQLiteIndex(filepath.Join(cfg.CacheDir, cas.SQLiteIndexFile))
	default:
		return nil, nil
	}
}

// Config returns the configuration the stage was opened with.
func (s *Stage) Config() domain.StageConfig {
	return s.cfg
}

// Build runs one build pass. It fails with domain.ErrPassInProgress while
// another pass of the same stage is running.
func (s *Stage) Build(ctx context.Context) (domain.BuildStats, error) {
	if !s.sem.TryAcquire(1) {
		return domain.BuildStats{Stage: s.cfg.Name},
			zerr.With(zerr.Wrap(domain.ErrPassInProgress, "cannot start build pass"), "stage", s.cfg.Name)
	}
	defer s.sem.Release(1)

	return s.builder.Build(ctx)
}

// Close releases the persisted cache index.
func (s *Stage) Close() error {
	return s.store.Close()
}
