// Package transform provides the built-in transformers configured in sift.yaml.
package transform

import (
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

// New builds the transformer described by spec. Commands run in workDir.
func New(spec domain.TransformSpec, workDir string, logger ports.Logger) (ports.Transformer, error) {
	switch spec.Kind {
	case domain.TransformReplace:
		return NewReplace(spec.Search, spec.Replace)
	case domain.TransformCommand:
		return NewCommand(spec.Command, spec.Environment, workDir, logger)
	case "":
		return nil, domain.ErrMissingTransformer
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, "unknown transform kind"), "kind", string(spec.Kind))
	}
}
