package framepreview

import "github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/graph"

// Sentinel errors, matched with errors.Is.
var (
	// ErrNoFrameAvailable: the graph stopped before a frame reached the sink.
	ErrNoFrameAvailable = graph.ErrNoFrameAvailable
	// ErrCancelled: the caller's context ended a blocking pull.
	ErrCancelled = graph.ErrCancelled
	// ErrInvalidTransition: the preview already ran or was closed.
	ErrInvalidTransition = graph.ErrInvalidTransition
)

// Typed errors, matched with errors.As.
type (
	ElementCreationError = graph.ElementCreationError
	PropertyError        = graph.PropertyError
	LinkError            = graph.LinkError
	FormatMismatchError  = graph.FormatMismatchError
	PipelineError        = graph.PipelineError
)

// LifecycleGraph returns the preview lifecycle state machine in graphviz
// syntax.
func LifecycleGraph() string { return graph.VisualizeLifecycle() }
