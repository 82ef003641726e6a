package domain

// PathState classifies a path discovered during a build pass.
type PathState string

const (
	// StateDirectory is a directory mirrored into the destination tree.
	StateDirectory PathState = "directory"
	// StateNonProcessable is a file passed through unchanged.
	StateNonProcessable PathState = "passthrough"
	// StateHit is a processable file whose cached artifact was reused.
	StateHit PathState = "hit"
	// StateMiss is a processable file that had to be transformed.
	StateMiss PathState = "miss"
)

// IsProcessable reports whether the state belongs to a processable file.
func (s PathState) IsProcessable() bool {
	return s == StateHit || s == StateMiss
}

// LogLevel represents the severity of a log message, mirroring the standard slog levels.
type LogLevel int

const (
	// LogLevelDebug represents debug-level verbosity.
	LogLevelDebug LogLevel = -4
	// LogLevelInfo represents informational verbosity.
	LogLevelInfo LogLevel = 0
	// LogLevelWarn represents warning verbosity.
	LogLevelWarn LogLevel = 4
	// LogLevelError represents error verbosity.
	LogLevelError LogLevel = 8
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}
