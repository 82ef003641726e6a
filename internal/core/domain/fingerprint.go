package domain

import "fmt"

// FingerprintPolicy selects which file properties take part in a fingerprint.
type FingerprintPolicy string

const (
	// PolicyMetadata captures size, permission bits and modification time.
	// File content is never read.
	PolicyMetadata FingerprintPolicy = "metadata"
	// PolicyContent captures size, permission bits and a content digest.
	// Modification time is ignored.
	PolicyContent FingerprintPolicy = "content"
	// PolicyStrict captures everything PolicyMetadata does plus a content digest.
	PolicyStrict FingerprintPolicy = "strict"
)

// Valid reports whether the policy is known.
func (p FingerprintPolicy) Valid() bool {
	switch p {
	case PolicyMetadata, PolicyContent, PolicyStrict:
		return true
	default:
		return false
	}
}

// ReadsContent reports whether computing a fingerprint requires reading the file.
func (p FingerprintPolicy) ReadsContent() bool {
	return p == PolicyContent || p == PolicyStrict
}

// Fingerprint is a cheap, comparable summary of a file's on-disk state.
// Fields that a policy does not capture are left zero.
type Fingerprint struct {
	Size   uint64 `json:"size"`
	Mode   uint32 `json:"mode"`
	MTime  int64  `json:"mtime,omitzero"`
	Digest uint64 `json:"digest,omitzero"`
}

// Equal reports whether every captured field is bit-identical.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// String implements fmt.Stringer.
func (f Fingerprint) String() string {
	return fmt.Sprintf("size=%d mode=%o mtime=%d digest=%016x", f.Size, f.Mode, f.MTime, f.Digest)
}
