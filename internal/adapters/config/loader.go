// Package config provides the configuration loader for sift.
package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is the configuration file looked up when none is given.
const DefaultFilename = "sift.yaml"

// DefaultCacheRoot holds the cache directories of stages that do not set one.
const DefaultCacheRoot = ".sift"

var _ ports.ConfigLoader = (*Loader)(nil)

// Option configures a Loader.
type Option func(*Loader)

// WithFs sets the filesystem configuration files are read from.
func WithFs(fs afero.Fs) Option {
	return func(l *Loader) {
		l.fs = fs
	}
}

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	fs     afero.Fs
	logger ports.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger ports.Logger, opts ...Option) *Loader {
	l := &Loader{fs: afero.NewOsFs(), logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration file at path and validates every stage.
// Relative directories resolve against the directory holding the file.
func (l *Loader) Load(path string) (*domain.Project, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve config path"), "path", path)
	}

	data, err := afero.ReadFile(l.fs, absPath)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read config file"), "path", absPath)
	}

	var siftfile Siftfile
	if err := yaml.Unmarshal(data, &siftfile); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse config file"), "path", absPath)
	}

	if siftfile.Version != "" && siftfile.Version != "1" {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unsupported config version"), "version", siftfile.Version)
	}
	if len(siftfile.Stages) == 0 {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "no stages defined"), "path", absPath)
	}

	project := &domain.Project{Root: filepath.Dir(absPath)}
	for name, dto := range siftfile.Stages {
		stage, err := l.buildStage(project.Root, name, dto)
		if err != nil {
			return nil, zerr.With(err, "stage", name)
		}
		project.Stages = append(project.Stages, stage)
	}
	slices.SortFunc(project.Stages, func(a, b domain.StageConfig) int {
		return strings.Compare(a.Name, b.Name)
	})

	for i, a := range project.Stages {
		for _, b := range project.Stages[i+1:] {
			if err := checkDisjoint(a, b); err != nil {
				return nil, err
			}
		}
	}

	return project, nil
}

// checkDisjoint rejects two stages whose caches or outputs collide.
// Sources may be shared.
func checkDisjoint(a, b domain.StageConfig) error {
	var msg string
	switch {
	case overlaps(a.CacheDir, b.CacheDir):
		msg = "stages must not share cache_dir"
	case overlaps(a.DestDir, b.DestDir):
		msg = "stages must not share dest"
	case overlaps(a.DestDir, b.SourceDir), overlaps(b.DestDir, a.SourceDir):
		msg = "dest must not overlap the source of another stage"
	case overlaps(a.DestDir, b.CacheDir), overlaps(b.DestDir, a.CacheDir):
		msg = "dest must not overlap the cache_dir of another stage"
	case within(a.CacheDir, b.SourceDir), within(b.CacheDir, a.SourceDir):
		msg = "cache_dir must be outside the source of another stage"
	default:
		return nil
	}
	return zerr.With(zerr.With(zerr.Wrap(domain.ErrInvalidConfig, msg), "stage", a.Name), "other", b.Name)
}

func (l *Loader) buildStage(root, name string, dto StageDTO) (domain.StageConfig, error) {
	if name == "" {
		return domain.StageConfig{}, zerr.Wrap(domain.ErrInvalidConfig, "stage name must not be empty")
	}
	if dto.Source == "" {
		return domain.StageConfig{}, zerr.Wrap(domain.ErrInvalidConfig, "source is required")
	}
	if dto.Dest == "" {
		return domain.StageConfig{}, zerr.Wrap(domain.ErrInvalidConfig, "dest is required")
	}

	cacheDir := dto.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(DefaultCacheRoot, name)
	}

	stage := domain.StageConfig{
		Name:            name,
		SourceDir:       resolve(root, dto.Source),
		DestDir:         resolve(root, dto.Dest),
		CacheDir:        resolve(root, cacheDir),
		Include:         dto.Include,
		Exclude:         dto.Exclude,
		InputEncoding:   withDefault(dto.InputEncoding, domain.DefaultEncoding),
		OutputEncoding:  withDefault(dto.OutputEncoding, domain.DefaultEncoding),
		Link:            domain.LinkStrategy(withDefault(dto.Link, string(domain.LinkSymlink))),
		Fingerprint:     domain.FingerprintPolicy(withDefault(dto.Fingerprint, string(domain.PolicyMetadata))),
		Persist:         domain.PersistMode(withDefault(dto.Persist, string(domain.PersistNone))),
		TargetExtension: normalizeTarget(dto.TargetExtension),
	}

	if within(stage.DestDir, stage.SourceDir) || within(stage.SourceDir, stage.DestDir) {
		return domain.StageConfig{}, zerr.Wrap(domain.ErrInvalidConfig, "source and dest must not overlap")
	}
	if within(stage.CacheDir, stage.SourceDir) || within(stage.CacheDir, stage.DestDir) {
		return domain.StageConfig{}, zerr.Wrap(domain.ErrInvalidConfig, "cache_dir must be outside source and dest")
	}

	exts, err := normalizeExtensions(dto.Extensions)
	if err != nil {
		return domain.StageConfig{}, err
	}
	stage.Extensions = exts
	if len(exts) == 0 && l.logger != nil {
		l.logger.Warn("stage has no extensions, every file passes through", "stage", name)
	}

	for _, pattern := range dto.Include {
		if !doublestar.ValidatePattern(pattern) {
			return domain.StageConfig{}, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "invalid include pattern"), "pattern", pattern)
		}
	}
	for _, pattern := range dto.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return domain.StageConfig{}, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "invalid exclude pattern"), "pattern", pattern)
		}
	}

	if !stage.Link.Valid() {
		return domain.StageConfig{}, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown link strategy"), "link", dto.Link)
	}
	if !stage.Fingerprint.Valid() {
		return domain.StageConfig{}, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown fingerprint policy"), "fingerprint", dto.Fingerprint)
	}
	if !stage.Persist.Valid() {
		return domain.StageConfig{}, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown persist mode"), "persist", dto.Persist)
	}

	transform, err := buildTransform(dto.Transform)
	if err != nil {
		return domain.StageConfig{}, err
	}
	stage.Transform = transform

	return stage, nil
}

func buildTransform(dto TransformDTO) (domain.TransformSpec, error) {
	spec := domain.TransformSpec{
		Kind:        domain.TransformKind(dto.Kind),
		Search:      dto.Search,
		Replace:     dto.Replace,
		Command:     dto.Cmd,
		Environment: dto.Environment,
	}

	switch spec.Kind {
	case domain.TransformReplace:
		if spec.Search == "" {
			return spec, zerr.Wrap(domain.ErrInvalidConfig, "replace transform requires search")
		}
	case domain.TransformCommand:
		if len(spec.Command) == 0 {
			return spec, zerr.Wrap(domain.ErrInvalidConfig, "command transform requires cmd")
		}
	case "":
		return spec, zerr.Wrap(domain.ErrMissingTransformer, "transform kind is required")
	default:
		return spec, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown transform kind"), "kind", dto.Kind)
	}
	return spec, nil
}

// normalizeExtensions strips leading dots and removes duplicates, keeping order.
func normalizeExtensions(exts []string) ([]string, error) {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		trimmed := strings.TrimPrefix(ext, ".")
		if trimmed == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "empty extension"), "extension", ext)
		}
		if !slices.Contains(out, trimmed) {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

func normalizeTarget(target *string) *string {
	if target == nil {
		return nil
	}
	trimmed := strings.TrimPrefix(*target, ".")
	return &trimmed
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// within reports whether p equals dir or lies below it.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func overlaps(p, q string) bool {
	return within(p, q) || within(q, p)
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
