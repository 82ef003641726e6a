package ports

import (
	"context"
	"io"

	"go.trai.ch/sift/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Telemetry records progress of build passes.
type Telemetry interface {
	// Record starts a new unit of work.
	Record(ctx context.Context, name string) (context.Context, Vertex)
	// Close flushes the recording.
	Close() error
}

// Vertex represents a unit of work such as a pass or a single file.
type Vertex interface {
	Stdout() io.Writer
	Log(level domain.LogLevel, msg string)
	// Cached marks the vertex as satisfied from cache.
	Cached()
	// Complete marks the vertex as finished; err is nil on success.
	Complete(err error)
}

// StatsRecorder receives pass statistics.
type StatsRecorder interface {
	ObservePass(stats domain.BuildStats, err error)
	// WriteTextfile exports the collected metrics to path.
	WriteTextfile(path string) error
}
