package ports

import "go.trai.ch/sift/internal/core/domain"

// Fingerprinter computes the identity of a file's on-disk state.
type Fingerprinter interface {
	// Fingerprint returns the fingerprint of the regular file at absPath.
	// It fails with domain.ErrNotAFile for directories and domain.ErrIO when
	// the path cannot be inspected.
	Fingerprint(absPath string) (domain.Fingerprint, error)
}
