// Package builder implements the incremental build pass of a stage.
package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// Deps are the collaborators of a Builder.
type Deps struct {
	// Stage names the stage in logs, telemetry and statistics.
	Stage string
	// SourceDir is the root of the input tree.
	SourceDir string

	Walker        ports.TreeWalker
	Fingerprinter ports.Fingerprinter
	Resolver      ports.DestinationResolver
	Store         ports.CacheStore
	Artifacts     ports.ArtifactStore
	Materializer  ports.Materializer
	InputCodec    ports.TextCodec
	Logger        ports.Logger
	// Telemetry is optional.
	Telemetry ports.Telemetry
}

// Builder runs build passes. Passes must not overlap; callers serialize them.
type Builder struct {
	Deps
	transformer ports.Transformer
}

// New creates a Builder applying transformer to processable files.
func New(transformer ports.Transformer, deps Deps) (*Builder, error) {
	if isNil(transformer) {
		return nil, zerr.With(zerr.Wrap(domain.ErrMissingTransformer, "cannot create builder"), "stage", deps.Stage)
	}
	return &Builder{Deps: deps, transformer: transformer}, nil
}

// isNil also catches nil pointers and funcs stored in the interface.
func isNil(t ports.Transformer) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// Build runs one pass over the source tree and returns its statistics.
// A transformation failure aborts the pass with a *domain.TransformError;
// outputs materialized before the failure stay in place.
func (b *Builder) Build(ctx context.Context) (stats domain.BuildStats, err error) {
	start := time.Now()
	stats = domain.BuildStats{PassID: uuid.NewString(), Stage: b.Stage}

	ctx, vertex := b.record(ctx, fmt.Sprintf("build %s", b.Stage))
	defer func() {
		stats.Duration = time.Since(start)
		if vertex != nil {
			vertex.Complete(err)
		}
	}()

	paths, err := b.enumerate()
	if err != nil {
		return stats, err
	}

	processable := domain.NewPathSet()
	for _, p := range paths {
		if !p.IsDir() && b.Resolver.CanProcess(p) {
			processable.Add(p)
		}
	}

	for _, evicted := range b.Store.RetainOnly(processable) {
		b.Logger.Debug("cache evict", "path", evicted.InputPath, "artifact", evicted.Artifact)
		if err := b.Artifacts.Remove(evicted.Artifact); err != nil {
			return stats, b.enrich(err, evicted.InputPath)
		}
		stats.Evicted++
	}

	defer func() {
		if saveErr := b.Store.Save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}()

	if err := b.Materializer.MkdirAll(""); err != nil {
		return stats, b.enrich(err, "")
	}

	produced := domain.NewPathSet()
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return stats, zerr.With(zerr.Wrap(err, "build pass cancelled"), "stage", b.Stage)
		}

		state, dest, err := b.buildPath(ctx, p)
		stats.Paths++
		if err != nil {
			return stats, err
		}
		produced.Add(dest)

		switch state {
		case domain.StateDirectory:
			stats.Directories++
		case domain.StateNonProcessable:
			stats.Passthrough++
		case domain.StateHit:
			stats.Hits++
		case domain.StateMiss:
			stats.Misses++
		}
	}

	pruned, err := b.Materializer.Prune(produced)
	stats.Pruned = pruned
	if err != nil {
		return stats, b.enrich(err, "")
	}

	return stats, nil
}

func (b *Builder) enumerate() ([]domain.RelativePath, error) {
	var paths []domain.RelativePath
	for p, err := range b.Walker.Walk(b.SourceDir) {
		if err != nil {
			return nil, zerr.With(err, "source_root", b.SourceDir)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// buildPath materializes one path and returns its state and destination path.
func (b *Builder) buildPath(ctx context.Context, p domain.RelativePath) (domain.PathState, domain.RelativePath, error) {
	if p.IsDir() {
		if err := b.Materializer.MkdirAll(p); err != nil {
			return domain.StateDirectory, p, b.enrich(err, p)
		}
		return domain.StateDirectory, p, nil
	}

	if !b.Resolver.CanProcess(p) {
		if err := b.Materializer.Passthrough(p.Under(b.SourceDir), p); err != nil {
			return domain.StateNonProcessable, p, b.enrich(err, p)
		}
		return domain.StateNonProcessable, p, nil
	}

	dest, ok := b.Resolver.DestinationPath(p)
	if !ok || dest == "" {
		return domain.StateMiss, p, b.enrich(zerr.Wrap(domain.ErrNoDestination, "processable path has no destination"), p)
	}

	state, err := b.process(ctx, p, dest)
	return state, dest, err
}

// process reuses the cached artifact of p when its fingerprint is unchanged
// and transforms it otherwise.
func (b *Builder) process(ctx context.Context, p, dest domain.RelativePath) (domain.PathState, error) {
	abs := p.Under(b.SourceDir)
	fp, err := b.Fingerprinter.Fingerprint(abs)
	if err != nil {
		return domain.StateMiss, b.enrich(err, p)
	}

	prev, cached := b.Store.Get(p)
	switch {
	case !cached:
		b.Logger.Debug("cache prime", "path", p)
	case prev.Fingerprint.Equal(fp) && prev.OutputPath == dest && b.Artifacts.Exists(prev.Artifact):
		b.Logger.Debug("cache hit", "path", p)
		return b.reuse(ctx, p, dest, prev)
	default:
		b.Logger.Debug("cache miss", "path", p, "previous", prev.Fingerprint.String(), "next", fp.String())
	}

	_, vertex := b.record(ctx, string(p))
	err = b.transformAndStore(ctx, p, dest, fp, prev, cached)
	if vertex != nil {
		vertex.Complete(err)
	}
	return domain.StateMiss, err
}

func (b *Builder) reuse(ctx context.Context, p, dest domain.RelativePath, entry domain.CacheEntry) (domain.PathState, error) {
	_, vertex := b.record(ctx, string(p))
	err := b.Materializer.LinkFromArtifact(b.Artifacts.Path(entry.Artifact), dest)
	if err != nil {
		err = b.enrich(err, p)
	}
	if vertex != nil {
		if err == nil {
			vertex.Cached()
		}
		vertex.Complete(err)
	}
	return domain.StateHit, err
}

func (b *Builder) transformAndStore(
	ctx context.Context,
	p, dest domain.RelativePath,
	fp domain.Fingerprint,
	prev domain.CacheEntry,
	replacing bool,
) error {
	abs := p.Under(b.SourceDir)
	data, err := os.ReadFile(abs) //nolint:gosec // Path is below the configured source root
	if err != nil {
		return b.enrich(zerr.Wrap(fmt.Errorf("%w: %w", domain.ErrIO, err), "failed to read source file"), p)
	}

	contents, err := b.InputCodec.Decode(data)
	if err != nil {
		return b.enrich(err, p)
	}

	output, err := b.transform(ctx, contents, p)
	if err != nil {
		return err
	}

	if err := b.Materializer.WriteOutput(dest, output); err != nil {
		return b.enrich(err, p)
	}

	artifact, err := b.Artifacts.Snapshot(b.Materializer.Abs(dest))
	if err != nil {
		return b.enrich(err, p)
	}

	if replacing {
		if err := b.Artifacts.Remove(prev.Artifact); err != nil {
			return b.enrich(err, p)
		}
	}

	b.Store.Set(p, domain.CacheEntry{
		InputPath:   p,
		OutputPath:  dest,
		Fingerprint: fp,
		Artifact:    artifact,
	})
	return nil
}

// transform calls the transformer, converting failures and panics into a *domain.TransformError.
func (b *Builder) transform(ctx context.Context, contents string, p domain.RelativePath) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewTransformPanic(r, p, b.SourceDir)
		}
	}()

	output, err = b.transformer.ProcessString(ctx, contents, string(p))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return "", domain.NewTransformError(err, p, b.SourceDir)
	}
	return output, nil
}

func (b *Builder) record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	if b.Telemetry == nil {
		return ctx, nil
	}
	return b.Telemetry.Record(ctx, name)
}

// enrich attaches the failing path and source root to err.
func (b *Builder) enrich(err error, p domain.RelativePath) error {
	return zerr.With(zerr.With(err, "path", string(p)), "source_root", b.SourceDir)
}
