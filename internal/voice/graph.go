package voice

import (
	"github.com/tphakala/voicekit/internal/audiograph"
)

// AnalysisGraph is a context and analyser pair tapping a capture handle. It
// does not own the handle and is invalid once the handle is torn down.
type AnalysisGraph struct {
	Context  *audiograph.Context
	Analyser *audiograph.Analyser

	handle *CaptureHandle
}

// HandleID returns the ID of the capture handle the graph taps.
func (g *AnalysisGraph) HandleID() string { return g.handle.ID() }

// Valid reports whether the context is running and its handle is active.
func (g *AnalysisGraph) Valid() bool {
	return g.Context.State() == audiograph.StateRunning && g.handle.Active()
}

// Close closes the graph's context. Close is idempotent.
func (g *AnalysisGraph) Close() error {
	return g.Context.Close()
}
