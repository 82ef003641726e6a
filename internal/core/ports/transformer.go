// Package ports defines the core interfaces for the application.
package ports

import "context"

// Transformer turns the contents of a processable file into new contents.
//
// Implementations must be pure with respect to (contents, relativePath): the
// build driver invokes ProcessString at most once per path and fingerprint and
// reuses the cached result afterwards.
//
//go:generate go run go.uber.org/mock/mockgen -source=transformer.go -destination=mocks/mock_transformer.go -package=mocks
type Transformer interface {
	ProcessString(ctx context.Context, contents, relativePath string) (string, error)
}

// TransformerFunc adapts an ordinary function to the Transformer interface.
type TransformerFunc func(ctx context.Context, contents, relativePath string) (string, error)

// ProcessString calls f(ctx, contents, relativePath).
func (f TransformerFunc) ProcessString(ctx context.Context, contents, relativePath string) (string, error) {
	return f(ctx, contents, relativePath)
}
