package ports

import "go.trai.ch/sift/internal/core/domain"

// Materializer places files and links into the destination tree.
// Every operation replaces whatever was at the destination before.
type Materializer interface {
	// MkdirAll ensures the destination directory rel exists.
	MkdirAll(rel domain.RelativePath) error
	// Passthrough exposes the source file absSrc at rel unchanged.
	Passthrough(absSrc string, rel domain.RelativePath) error
	// WriteOutput writes transformed contents to rel.
	WriteOutput(rel domain.RelativePath, contents string) error
	// LinkFromArtifact exposes the cached artifact at absArtifact at rel.
	LinkFromArtifact(absArtifact string, rel domain.RelativePath) error
	// Abs returns the absolute destination path of rel.
	Abs(rel domain.RelativePath) string
	// Prune removes every destination entry not in keep and returns how many were removed.
	Prune(keep domain.PathSet) (int, error)
}
