package ports

import "go.trai.ch/sift/internal/core/domain"

// DestinationResolver decides which files are processed and where their output goes.
type DestinationResolver interface {
	// CanProcess reports whether the file at rel should be transformed.
	CanProcess(rel domain.RelativePath) bool
	// DestinationPath returns the output path for rel, or false when rel is not processable.
	DestinationPath(rel domain.RelativePath) (domain.RelativePath, bool)
}
