package domain

// CacheEntry links a processable input path to the artifact produced for it.
type CacheEntry struct {
	// InputPath is the relative path of the source file, also the cache key.
	InputPath RelativePath `json:"input_path"`
	// OutputPath is the relative destination path the artifact was written to.
	OutputPath RelativePath `json:"output_path"`
	// Fingerprint is the state of the input when the artifact was produced.
	Fingerprint Fingerprint `json:"fingerprint"`
	// Artifact is the file name of the snapshot inside the artifact directory.
	Artifact string `json:"artifact"`
}
