package domain

// LinkStrategy selects how files are exposed in the destination tree.
type LinkStrategy string

const (
	// LinkSymlink places symbolic links, falling back to copies.
	LinkSymlink LinkStrategy = "symlink"
	// LinkHardlink places hard links, falling back to copies.
	LinkHardlink LinkStrategy = "hardlink"
	// LinkCopy always copies bytes.
	LinkCopy LinkStrategy = "copy"
)

// Valid reports whether the strategy is known.
func (s LinkStrategy) Valid() bool {
	switch s {
	case LinkSymlink, LinkHardlink, LinkCopy:
		return true
	default:
		return false
	}
}

// PersistMode selects where the cache index is kept between runs.
type PersistMode string

const (
	// PersistNone keeps the cache index in memory only.
	PersistNone PersistMode = "none"
	// PersistJSON keeps the cache index in a JSON file next to the artifacts.
	PersistJSON PersistMode = "json"
	// PersistSQLite keeps the cache index in an SQLite database.
	PersistSQLite PersistMode = "sqlite"
)

// Valid reports whether the mode is known.
func (m PersistMode) Valid() bool {
	switch m {
	case PersistNone, PersistJSON, PersistSQLite:
		return true
	default:
		return false
	}
}

// DefaultEncoding is the codec used when none is configured.
const DefaultEncoding = "utf-8"

// StageConfig is the validated configuration of a single pipeline stage.
type StageConfig struct {
	// Name identifies the stage in logs and telemetry.
	Name string
	// SourceDir is the root of the input tree.
	SourceDir string
	// DestDir is the root of the output tree.
	DestDir string
	// CacheDir holds the artifacts owned by this stage.
	CacheDir string

	// Extensions lists the file extensions eligible for processing, without dots.
	Extensions []string
	// TargetExtension, when non-nil, replaces the matched extension.
	TargetExtension *string
	// Include optionally restricts processable files to these globs.
	Include []string
	// Exclude lists base name patterns skipped while walking the source tree.
	Exclude []string

	InputEncoding  string
	OutputEncoding string

	Link        LinkStrategy
	Fingerprint FingerprintPolicy
	Persist     PersistMode

	// Transform describes the transformation applied to processable files.
	Transform TransformSpec
}

// TransformKind names a built-in transformer.
type TransformKind string

const (
	// TransformReplace rewrites contents using a regular expression.
	TransformReplace TransformKind = "replace"
	// TransformCommand pipes contents through an external command.
	TransformCommand TransformKind = "command"
)

// TransformSpec configures a built-in transformer.
type TransformSpec struct {
	Kind TransformKind

	// Search and Replace apply to TransformReplace.
	Search  string
	Replace string

	// Command and Environment apply to TransformCommand.
	Command     []string
	Environment map[string]string
}

// Project is the set of stages declared by one configuration file.
type Project struct {
	// Root is the directory relative paths in the configuration resolve against.
	Root string
	// Stages are ordered by name.
	Stages []StageConfig
}

// Stage returns the stage called name.
func (p *Project) Stage(name string) (StageConfig, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageConfig{}, false
}
