package ports

import (
	"context"
	"iter"
)

//go:generate go run go.uber.org/mock/mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks

// Watcher reports changes below a source root.
type Watcher interface {
	// Start begins watching root recursively.
	Start(ctx context.Context, root string) error
	// Changes yields batches of changed paths, coalesced over a short window.
	Changes() iter.Seq[[]string]
	// Stop releases all resources.
	Stop() error
}
