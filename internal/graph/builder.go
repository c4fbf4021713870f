// Package graph orchestrates a decode graph on top of a media engine.
//
// The graph is assembled in two halves. The static half (source → decoder,
// converter → scaler → sink) is wired by Build. The decoder's output only
// exists once the container is parsed, so the Linker completes the graph
// from StreamDiscovered events, which the Monitor dispatches from the
// pipeline's event stream. The Controller owns the graph and drives its
// lifecycle; the Sink pulls frames out of the far end.
package graph

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// Element names inside the pipeline.
const (
	NameSource    = "source"
	NameDecoder   = "decoder"
	NameConverter = "vconvert"
	NameScaler    = "vscale"
	NameSink      = "sink"
)

// SinkQueueDepth bounds the samples the sink holds for a slow consumer.
// The sink does not drop, so a full queue blocks the decoder instead.
const SinkQueueDepth uint = 4

// Graph is an assembled pipeline with handles to its stages. The elements
// are owned by Pipeline; the fields are lookup handles only.
type Graph struct {
	Pipeline  engine.Pipeline
	Source    engine.Element
	Decoder   engine.Element
	Converter engine.Element
	Scaler    engine.Element
	Sink      engine.SinkElement

	// Target is the capability the sink accepts.
	Target caps.Capability
}

// Build creates a pipeline on eng and assembles its static stages:
//
//	source → decoder      (linked now)
//	converter → scaler → sink   (linked now, fed later by the Linker)
//
// On failure the partially built pipeline is closed. Errors are
// *ElementCreationError, *PropertyError or *LinkError.
func Build(eng engine.Engine, name, sourcePath string, target caps.Capability) (*Graph, error) {
	pipeline, err := eng.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("graph: create pipeline: %w", err)
	}

	g, err := assemble(pipeline, sourcePath, target)
	if err != nil {
		if cerr := pipeline.Close(); cerr != nil {
			slog.Warn("frame-preview: failed to release partial pipeline", "error", cerr)
		}
		return nil, err
	}

	slog.Debug("frame-preview: graph assembled",
		"pipeline", name,
		"source", sourcePath,
		"target", target.String(),
	)
	return g, nil
}

func assemble(pipeline engine.Pipeline, sourcePath string, target caps.Capability) (*Graph, error) {
	g := &Graph{Pipeline: pipeline, Target: target}

	stages := []struct {
		kind engine.ElementKind
		name string
		dst  *engine.Element
	}{
		{engine.KindSource, NameSource, &g.Source},
		{engine.KindDecoder, NameDecoder, &g.Decoder},
		{engine.KindConverter, NameConverter, &g.Converter},
		{engine.KindScaler, NameScaler, &g.Scaler},
	}
	for _, st := range stages {
		el, err := pipeline.NewElement(st.kind, st.name)
		if err != nil {
			return nil, &ElementCreationError{Kind: st.kind, Name: st.name, Err: err}
		}
		*st.dst = el
	}

	sinkEl, err := pipeline.NewElement(engine.KindSink, NameSink)
	if err != nil {
		return nil, &ElementCreationError{Kind: engine.KindSink, Name: NameSink, Err: err}
	}
	sink, ok := sinkEl.(engine.SinkElement)
	if !ok {
		return nil, &ElementCreationError{
			Kind: engine.KindSink,
			Name: NameSink,
			Err:  fmt.Errorf("element %T cannot deliver frames", sinkEl),
		}
	}
	g.Sink = sink

	if err := setProperty(g.Source, engine.PropLocation, sourcePath); err != nil {
		return nil, err
	}
	if err := setProperty(g.Sink, engine.PropCaps, target); err != nil {
		return nil, err
	}
	if err := setProperty(g.Sink, engine.PropMaxBuffers, SinkQueueDepth); err != nil {
		return nil, err
	}
	if err := setProperty(g.Sink, engine.PropDrop, false); err != nil {
		return nil, err
	}

	links := [][2]engine.Element{
		{g.Source, g.Decoder},
		{g.Converter, g.Scaler},
		{g.Scaler, g.Sink},
	}
	for _, l := range links {
		if err := pipeline.Link(l[0], l[1]); err != nil {
			return nil, &LinkError{Src: l[0].Name(), Dst: l[1].Name(), Err: err}
		}
	}

	return g, nil
}

func setProperty(el engine.Element, name string, value any) error {
	if err := el.SetProperty(name, value); err != nil {
		return &PropertyError{Element: el.Name(), Property: name, Value: value, Err: err}
	}
	return nil
}
