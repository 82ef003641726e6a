// Package destination maps input paths to output paths.
package destination

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
)

var _ ports.DestinationResolver = (*Resolver)(nil)

type resolution struct {
	dest domain.RelativePath
	ok   bool
}

// Resolver decides processability by file extension and rewrites the
// extension of processable paths. Results are memoized per path.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	extensions []string
	target     *string
	include    []string

	memo map[domain.RelativePath]resolution
}

// NewResolver creates a Resolver for the ordered extensions, without dots.
// A nil target keeps destination names unchanged. When include globs are
// given, only paths matching one of them are processable.
func NewResolver(extensions []string, target *string, include ...string) *Resolver {
	return &Resolver{
		extensions: extensions,
		target:     target,
		include:    include,
		memo:       make(map[domain.RelativePath]resolution),
	}
}

// CanProcess reports whether rel has a destination path.
func (r *Resolver) CanProcess(rel domain.RelativePath) bool {
	_, ok := r.DestinationPath(rel)
	return ok
}

// DestinationPath returns the output path of rel. The first configured
// extension following a dot at the end of rel wins.
func (r *Resolver) DestinationPath(rel domain.RelativePath) (domain.RelativePath, bool) {
	if res, ok := r.memo[rel]; ok {
		return res.dest, res.ok
	}
	res := r.resolve(rel)
	r.memo[rel] = res
	return res.dest, res.ok
}

func (r *Resolver) resolve(rel domain.RelativePath) resolution {
	if rel.IsDir() || !r.included(rel) {
		return resolution{}
	}

	p := string(rel)
	for _, ext := range r.extensions {
		if !strings.HasSuffix(p, "."+ext) {
			continue
		}
		if r.target != nil {
			p = p[:len(p)-len(ext)] + *r.target
		}
		return resolution{dest: domain.RelativePath(p), ok: true}
	}
	return resolution{}
}

func (r *Resolver) included(rel domain.RelativePath) bool {
	if len(r.include) == 0 {
		return true
	}
	for _, pattern := range r.include {
		if ok, _ := doublestar.Match(pattern, string(rel)); ok {
			return true
		}
	}
	return false
}
