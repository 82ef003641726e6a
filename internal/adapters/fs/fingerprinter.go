package fs

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/sift/internal/core/domain"
	"go.trai.ch/sift/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fingerprinter = (*Fingerprinter)(nil)

// Fingerprinter computes file fingerprints according to a policy.
type Fingerprinter struct {
	policy domain.FingerprintPolicy
}

// NewFingerprinter creates a Fingerprinter. An empty policy means domain.PolicyMetadata.
func NewFingerprinter(policy domain.FingerprintPolicy) *Fingerprinter {
	if policy == "" {
		policy = domain.PolicyMetadata
	}
	return &Fingerprinter{policy: policy}
}

// Policy returns the active fingerprint policy.
func (f *Fingerprinter) Policy() domain.FingerprintPolicy {
	return f.policy
}

// Fingerprint stats the file at absPath, following symlinks.
func (f *Fingerprinter) Fingerprint(absPath string) (domain.Fingerprint, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return domain.Fingerprint{}, ioError(err, "failed to stat file", absPath)
	}
	if info.IsDir() {
		return domain.Fingerprint{}, zerr.With(zerr.Wrap(domain.ErrNotAFile, "cannot fingerprint directory"), "path", absPath)
	}

	fp := domain.Fingerprint{
		Size: uint64(info.Size()), //nolint:gosec // Sizes reported by stat are never negative
		Mode: uint32(info.Mode().Perm()),
	}
	if f.policy != domain.PolicyContent {
		fp.MTime = info.ModTime().UnixNano()
	}
	if f.policy.ReadsContent() {
		digest, err := ComputeFileHash(absPath)
		if err != nil {
			return domain.Fingerprint{}, err
		}
		fp.Digest = digest
	}
	return fp, nil
}

// ComputeFileHash computes the XXHash of a file's content.
func ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, ioError(err, "failed to open file", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, ioError(err, "failed to hash file content", path)
	}

	return hasher.Sum64(), nil
}
