package transform

import (
	"context"
	"regexp"

	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Transformer = (*Replace)(nil)

// Replace rewrites every match of a regular expression.
// The replacement may reference capture groups as $1 or ${name}.
type Replace struct {
	search      *regexp.Regexp
	replacement string
}

// NewReplace compiles search.
func NewReplace(search, replacement string) (*Replace, error) {
	re, err := regexp.Compile(search)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidConfig, err.Error()), "search", search)
	}
	return &Replace{search: re, replacement: replacement}, nil
}

// ProcessString implements ports.Transformer.
func (r *Replace) ProcessString(_ context.Context, contents, _ string) (string, error) {
	return r.search.ReplaceAllString(contents, r.replacement), nil
}
