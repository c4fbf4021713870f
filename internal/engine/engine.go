// Package engine defines the media engine capability the decode graph is
// orchestrated on top of. The engine owns codecs, demuxers and worker
// threads; this package only describes how the orchestration layer drives it.
package engine

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
)

var (
	// ErrNotInitialized is returned when the engine is used before
	// Initialize or after Finalize.
	ErrNotInitialized = errors.New("engine: not initialized")

	// ErrEndOfStream is returned by SinkElement.TryPull once the sink
	// reached end of stream or is flushing because the pipeline stopped.
	ErrEndOfStream = errors.New("engine: end of stream")

	// ErrUnknownElement is returned when the engine has no factory for a kind.
	ErrUnknownElement = errors.New("engine: no factory for element kind")

	// ErrClosed is returned by pipeline operations after Close.
	ErrClosed = errors.New("engine: pipeline closed")
)

// ElementKind is the role an element plays in the graph.
type ElementKind string

const (
	KindSource    ElementKind = "source"
	KindDecoder   ElementKind = "decoder"
	KindConverter ElementKind = "converter"
	KindScaler    ElementKind = "scaler"
	KindSink      ElementKind = "sink"
)

// State is the running state of a pipeline.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Well-known property names.
const (
	PropLocation   = "location"
	PropCaps       = "caps"
	PropMaxBuffers = "max-buffers"
	PropDrop       = "drop"
)

// Engine is the process-wide media engine. Initialize and Finalize bracket
// the whole process lifetime.
type Engine interface {
	Initialize() error
	Finalize()
	NewPipeline(name string) (Pipeline, error)
}

// Pipeline is an engine-side graph. Elements created through it are owned
// by it.
type Pipeline interface {
	Name() string

	// NewElement instantiates an element of the given kind and adds it to
	// the pipeline.
	NewElement(kind ElementKind, name string) (Element, error)

	// Link connects the default source pad of src to the default sink pad
	// of dst.
	Link(src, dst Element) error

	// LinkPads connects two specific pads.
	LinkPads(src, dst Pad) error

	SetState(State) error

	// SyncChildren brings every element's state in line with the pipeline.
	SyncChildren() error

	// QueryDuration reports the stream duration if the engine knows it.
	QueryDuration() (time.Duration, bool)

	// Events returns the pipeline's event stream. Events are delivered in
	// FIFO order per source. The channel is closed by Close.
	Events() <-chan Event

	// Close drops the pipeline to the null state and releases it. Safe to
	// call more than once.
	Close() error
}

// Element is a single processing stage.
type Element interface {
	Name() string
	Kind() ElementKind
	SetProperty(name string, value any) error
	Property(name string) (any, error)

	// StaticPad returns an always-present pad ("sink" or "src"), or nil.
	StaticPad(name string) Pad
}

// SinkElement is an element frames can be pulled from.
type SinkElement interface {
	Element

	// TryPull waits up to timeout for a frame. preroll selects the buffer
	// held while paused instead of the playing sample queue. It returns
	// (nil, nil) on timeout and ErrEndOfStream once no more frames can come.
	TryPull(preroll bool, timeout time.Duration) (*Sample, error)
}

// Pad is a connection point on an element.
type Pad interface {
	Name() string
	ElementName() string
	Caps() caps.Capability
	IsLinked() bool
}

// Sample is one buffer delivered by a sink along with the capability that
// was negotiated for it.
type Sample struct {
	Data []byte
	Caps caps.Capability
	PTS  time.Duration

	// Stride is the length of a row in Data, padding included. Zero means
	// rows are tightly packed.
	Stride int
}
