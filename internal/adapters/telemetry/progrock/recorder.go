// Package progrock records build passes on a progrock tape.
package progrock

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/sift/internal/core/ports"
)

var _ ports.Telemetry = (*Recorder)(nil)

type scopeKey struct{}

// Recorder implements ports.Telemetry on top of a progrock.Recorder.
// Vertices recorded under a context returned by Record are scoped to the
// parent, so the same file recorded in two passes yields two vertices.
type Recorder struct {
	w   progrock.Writer
	rec *progrock.Recorder
}

// New creates a Recorder writing to an in-memory tape.
func New() *Recorder {
	return NewRecorder(progrock.NewTape())
}

// NewRecorder creates a Recorder writing to w.
func NewRecorder(w progrock.Writer) *Recorder {
	return &Recorder{w: w, rec: progrock.NewRecorder(w)}
}

// Record starts a vertex named name below the vertex carried by ctx, if any.
func (r *Recorder) Record(ctx context.Context, name string) (context.Context, ports.Vertex) {
	id := name
	if parent, ok := ctx.Value(scopeKey{}).(string); ok {
		id = parent + "/" + name
	}
	v := r.rec.Vertex(digest.FromString(id), name)
	return context.WithValue(ctx, scopeKey{}, id), &Vertex{vertex: v}
}

// Close closes the underlying writer when it supports closing.
func (r *Recorder) Close() error {
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
