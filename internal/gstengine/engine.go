// Package gstengine implements the media engine on GStreamer.
//
// Element kinds map to stock factories:
//
//	source → filesrc, decoder → decodebin, converter → videoconvert,
//	scaler → videoscale, sink → appsink
//
// decodebin announces each elementary stream through its pad-added signal,
// which is forwarded as a StreamDiscovered event. Bus messages are polled
// on a dedicated goroutine and forwarded the same way.
package gstengine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

var factories = map[engine.ElementKind]string{
	engine.KindSource:    "filesrc",
	engine.KindDecoder:   "decodebin",
	engine.KindConverter: "videoconvert",
	engine.KindScaler:    "videoscale",
	engine.KindSink:      "appsink",
}

// Engine implements engine.Engine.
type Engine struct {
	mu          sync.Mutex
	initialized bool
}

// New returns an uninitialized engine.
func New() *Engine { return &Engine{} }

// Initialize loads GStreamer. Calling it again is a no-op.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}

	gst.Init(nil)
	e.initialized = true

	slog.Debug("frame-preview: gstreamer initialized")
	return nil
}

// Finalize unloads GStreamer. It cannot be initialized again in the same
// process afterwards.
func (e *Engine) Finalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}

	gst.Deinit()
	e.initialized = false
	slog.Debug("frame-preview: gstreamer finalized")
}

// NewPipeline creates an empty pipeline and starts watching its bus.
func (e *Engine) NewPipeline(name string) (engine.Pipeline, error) {
	e.mu.Lock()
	initialized := e.initialized
	e.mu.Unlock()
	if !initialized {
		return nil, engine.ErrNotInitialized
	}

	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("gstengine: create pipeline %q: %w", name, err)
	}
	return newPipeline(p), nil
}

func toGstState(s engine.State) gst.State {
	switch s {
	case engine.StateReady:
		return gst.StateReady
	case engine.StatePaused:
		return gst.StatePaused
	case engine.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateNull
	}
}

func fromGstState(s gst.State) engine.State {
	switch s {
	case gst.StateReady:
		return engine.StateReady
	case gst.StatePaused:
		return engine.StatePaused
	case gst.StatePlaying:
		return engine.StatePlaying
	default:
		return engine.StateNull
	}
}
