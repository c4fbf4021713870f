// Package fakeengine is a scripted, in-memory media engine used to exercise
// the decode graph without GStreamer.
//
// A Script describes what the "container" holds: the elementary streams the
// decoder discovers, the frames the sink delivers once a video stream is
// linked, and optional failures. Discovery runs on its own goroutine when the
// pipeline first leaves the null state, like a real demuxer would, and each
// announced pad is held until its event is acknowledged.
package fakeengine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// Script drives a fake pipeline.
type Script struct {
	// Streams are the pads the decoder announces, in order. A pad may be
	// listed twice to simulate duplicate discovery events.
	Streams []caps.Capability

	// DuplicateDiscovery re-announces every pad once more after the first
	// round.
	DuplicateDiscovery bool

	// Frames are delivered by the sink once a video stream is linked.
	Frames [][]byte

	// FrameCaps is the negotiated capability attached to every frame.
	FrameCaps caps.Capability

	// FrameStride is the row length of Frames when rows carry padding
	// (see PadRows); zero means tightly packed.
	FrameStride int

	// MissingKinds makes element creation fail for these kinds.
	MissingKinds map[engine.ElementKind]bool

	// LinkError, if set, is returned for every dynamic link into the
	// converter.
	LinkError error

	// FailAfter, when > 0, emits a fatal error event after that many
	// frames have been pulled and then stalls the sink.
	FailAfter int

	// Duration reported by QueryDuration; zero means unknown.
	Duration time.Duration
}

// Engine implements engine.Engine.
type Engine struct {
	script Script

	mu          sync.Mutex
	initialized bool
	pipelines   []*Pipeline
}

// New returns an engine that builds pipelines following script.
func New(script Script) *Engine {
	return &Engine{script: script}
}

func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = true
	return nil
}

func (e *Engine) Finalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = false
}

// Initialized reports whether Initialize was called without a later Finalize.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

func (e *Engine) NewPipeline(name string) (engine.Pipeline, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, engine.ErrNotInitialized
	}
	p := newPipeline(name, e.script)
	e.pipelines = append(e.pipelines, p)
	return p, nil
}

// LastPipeline returns the most recently created pipeline, or nil.
func (e *Engine) LastPipeline() *Pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pipelines) == 0 {
		return nil
	}
	return e.pipelines[len(e.pipelines)-1]
}

// Pipeline implements engine.Pipeline.
type Pipeline struct {
	name   string
	script Script

	mu         sync.Mutex
	elements   map[string]*Element
	state      engine.State
	states     []engine.State
	discovered bool
	closed     bool
	eosSent    bool
	failSent   bool
	pulled     int
	handoffs   []bool

	syncCount atomic.Int64
	linkCount atomic.Int64

	events   chan engine.Event
	done     chan struct{}
	emitters sync.WaitGroup
}

func newPipeline(name string, script Script) *Pipeline {
	return &Pipeline{
		name:     name,
		script:   script,
		elements: make(map[string]*Element),
		events:   make(chan engine.Event, 64),
		done:     make(chan struct{}),
	}
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) NewElement(kind engine.ElementKind, name string) (engine.Element, error) {
	if p.script.MissingKinds[kind] {
		return nil, fmt.Errorf("%w: %s", engine.ErrUnknownElement, kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, engine.ErrClosed
	}
	if _, exists := p.elements[name]; exists {
		return nil, fmt.Errorf("fakeengine: element %q already in pipeline", name)
	}

	el := &Element{
		name:  name,
		kind:  kind,
		props: make(map[string]any),
		owner: p,
	}
	switch kind {
	case engine.KindSource:
		el.src = newPad("src", name, caps.Any())
	case engine.KindDecoder:
		el.sink = newPad("sink", name, caps.Any())
	case engine.KindConverter:
		el.sink = newPad("sink", name, caps.Video())
		el.src = newPad("src", name, caps.Video())
	case engine.KindScaler:
		el.sink = newPad("sink", name, caps.Video())
		el.src = newPad("src", name, caps.Video())
	case engine.KindSink:
		el.sink = newPad("sink", name, caps.Any())
	}
	p.elements[name] = el

	if kind == engine.KindSink {
		return &SinkElement{Element: el}, nil
	}
	return el, nil
}

func (p *Pipeline) Link(src, dst engine.Element) error {
	s, ok1 := unwrap(src)
	d, ok2 := unwrap(dst)
	if !ok1 || !ok2 {
		return errors.New("fakeengine: foreign element")
	}
	if s.src == nil || d.sink == nil {
		return fmt.Errorf("fakeengine: %s has no src pad or %s has no sink pad", s.name, d.name)
	}
	return p.LinkPads(s.src, d.sink)
}

func (p *Pipeline) LinkPads(src, dst engine.Pad) error {
	s, ok1 := src.(*Pad)
	d, ok2 := dst.(*Pad)
	if !ok1 || !ok2 {
		return errors.New("fakeengine: foreign pad")
	}

	p.mu.Lock()
	target := p.elements[d.element]
	p.mu.Unlock()

	if target != nil && target.kind == engine.KindConverter && p.script.LinkError != nil {
		return p.script.LinkError
	}
	if !caps.CompatibleAt(caps.BoundaryKind, s.caps, d.caps) {
		return fmt.Errorf("fakeengine: %s.%s (%s) cannot feed %s.%s (%s)",
			s.element, s.name, s.caps, d.element, d.name, d.caps)
	}
	if !d.linked.CompareAndSwap(false, true) {
		return fmt.Errorf("fakeengine: %s.%s already linked", d.element, d.name)
	}
	s.linked.Store(true)

	if target != nil && target.kind == engine.KindConverter {
		p.linkCount.Add(1)
	}
	return nil
}

func (p *Pipeline) SetState(state engine.State) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return engine.ErrClosed
	}
	old := p.state
	p.state = state
	p.states = append(p.states, state)
	startDiscovery := state >= engine.StatePaused && !p.discovered
	if startDiscovery {
		p.discovered = true
		p.emitters.Add(1)
	}
	p.mu.Unlock()

	if startDiscovery {
		go p.discover(old, state)
		return nil
	}
	if state == engine.StateNull {
		return nil
	}
	if old != state {
		p.emit(engine.StateChangedEvent(old, state))
	}
	return nil
}

// discover announces every scripted stream, then reports the state change
// or, when the container holds no video, the not-linked failure a real
// demuxer raises.
func (p *Pipeline) discover(old, target engine.State) {
	defer p.emitters.Done()

	dec := p.elementOfKind(engine.KindDecoder)
	if dec == nil {
		return
	}

	rounds := 1
	if p.script.DuplicateDiscovery {
		rounds = 2
	}
	pads := make([]*Pad, len(p.script.Streams))
	for i, c := range p.script.Streams {
		pads[i] = newPad(fmt.Sprintf("src_%d", i), dec.name, c)
	}
	hasVideo := false
	for r := 0; r < rounds; r++ {
		for _, pad := range pads {
			if pad.caps.Kind() == caps.KindVideo {
				hasVideo = true
			}
			if !p.announce(pad) {
				return
			}
		}
	}

	if !hasVideo {
		p.emit(engine.ErrorEvent(dec.name, "Internal data stream error.",
			"streaming stopped, reason not-linked (-1)"))
		return
	}
	p.emit(engine.StateChangedEvent(old, target))
}

// announce holds the pad back until the consumer acknowledged its
// discovery, the way a demuxer blocks in pad-added, and records whether the
// converter was fed by then.
func (p *Pipeline) announce(pad *Pad) bool {
	ev := engine.StreamDiscoveredEvent(pad)
	if !p.emit(ev) {
		return false
	}
	select {
	case <-ev.Acked():
	case <-p.done:
		return false
	}

	linked := p.converterLinked()
	p.mu.Lock()
	p.handoffs = append(p.handoffs, linked)
	p.mu.Unlock()
	return true
}

func (p *Pipeline) SyncChildren() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return engine.ErrClosed
	}
	p.syncCount.Add(1)
	return nil
}

func (p *Pipeline) QueryDuration() (time.Duration, bool) {
	return p.script.Duration, p.script.Duration > 0
}

func (p *Pipeline) Events() <-chan engine.Event { return p.events }

func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.state = engine.StateNull
	p.states = append(p.states, engine.StateNull)
	close(p.done)
	p.mu.Unlock()

	p.emitters.Wait()
	close(p.events)
	return nil
}

// Emit injects an arbitrary event, as if the engine raised it.
func (p *Pipeline) Emit(ev engine.Event) { p.emit(ev) }

func (p *Pipeline) emit(ev engine.Event) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.emitters.Add(1)
	p.mu.Unlock()
	defer p.emitters.Done()

	select {
	case p.events <- ev:
		return true
	case <-p.done:
		return false
	}
}

// Handoffs reports, for every acknowledged discovery in order, whether the
// converter was already linked when the decoder got its pad back.
func (p *Pipeline) Handoffs() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.handoffs...)
}

// SyncCount is the number of SyncChildren calls.
func (p *Pipeline) SyncCount() int { return int(p.syncCount.Load()) }

// ConverterLinks is the number of successful links into the converter.
func (p *Pipeline) ConverterLinks() int { return int(p.linkCount.Load()) }

// Closed reports whether Close was called.
func (p *Pipeline) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// States returns every state the pipeline was asked to enter.
func (p *Pipeline) States() []engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.State(nil), p.states...)
}

// Element returns the element with the given name, or nil.
func (p *Pipeline) Element(name string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elements[name]
}

func (p *Pipeline) elementOfKind(kind engine.ElementKind) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements {
		if el.kind == kind {
			return el
		}
	}
	return nil
}

func (p *Pipeline) converterLinked() bool {
	conv := p.elementOfKind(engine.KindConverter)
	return conv != nil && conv.sink.IsLinked()
}

// pull hands out the next frame, honouring preroll, end of stream and the
// scripted failure point.
func (p *Pipeline) pull(preroll bool) (*engine.Sample, bool, error) {
	if !p.converterLinked() || p.SyncCount() == 0 {
		return nil, false, nil
	}

	p.mu.Lock()
	if p.closed || p.state == engine.StateNull {
		p.mu.Unlock()
		return nil, false, engine.ErrEndOfStream
	}
	if p.script.FailAfter > 0 && p.pulled >= p.script.FailAfter {
		sendFail := !p.failSent
		p.failSent = true
		p.mu.Unlock()
		if sendFail {
			p.emit(engine.ErrorEvent("decoder", "Could not decode stream.", "corrupt slice header"))
		}
		return nil, false, nil
	}
	if preroll {
		if p.state < engine.StatePaused || len(p.script.Frames) == 0 {
			p.mu.Unlock()
			return nil, false, nil
		}
		p.mu.Unlock()
		return p.sample(0), true, nil
	}
	if p.state != engine.StatePlaying {
		p.mu.Unlock()
		return nil, false, nil
	}
	if p.pulled >= len(p.script.Frames) {
		sendEOS := !p.eosSent
		p.eosSent = true
		p.mu.Unlock()
		if sendEOS {
			p.emit(engine.EndOfStreamEvent())
		}
		return nil, false, engine.ErrEndOfStream
	}
	idx := p.pulled
	p.pulled++
	p.mu.Unlock()
	return p.sample(idx), true, nil
}

func (p *Pipeline) sample(idx int) *engine.Sample {
	data := make([]byte, len(p.script.Frames[idx]))
	copy(data, p.script.Frames[idx])
	return &engine.Sample{
		Data:   data,
		Caps:   p.script.FrameCaps,
		PTS:    time.Duration(idx) * 40 * time.Millisecond,
		Stride: p.script.FrameStride,
	}
}

// Element implements engine.Element.
type Element struct {
	name  string
	kind  engine.ElementKind
	owner *Pipeline

	mu    sync.Mutex
	props map[string]any

	sink *Pad
	src  *Pad
}

func (e *Element) Name() string             { return e.name }
func (e *Element) Kind() engine.ElementKind { return e.kind }

func (e *Element) SetProperty(name string, value any) error {
	if e.kind == engine.KindSource && name == engine.PropLocation {
		path, ok := value.(string)
		if !ok {
			return fmt.Errorf("fakeengine: location must be a string, got %T", value)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		f.Close()
	}
	if name == engine.PropCaps {
		c, ok := value.(caps.Capability)
		if !ok {
			return fmt.Errorf("fakeengine: caps must be a capability, got %T", value)
		}
		if e.sink != nil {
			e.sink.caps = c
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.props[name] = value
	return nil
}

func (e *Element) Property(name string) (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.props[name]
	if !ok {
		return nil, fmt.Errorf("fakeengine: %s has no property %q set", e.name, name)
	}
	return v, nil
}

func (e *Element) StaticPad(name string) engine.Pad {
	switch {
	case name == "sink" && e.sink != nil:
		return e.sink
	case name == "src" && e.src != nil:
		return e.src
	default:
		return nil
	}
}

// SinkElement implements engine.SinkElement.
type SinkElement struct {
	*Element
}

const pollInterval = 2 * time.Millisecond

func (s *SinkElement) TryPull(preroll bool, timeout time.Duration) (*engine.Sample, error) {
	deadline := time.Now().Add(timeout)
	for {
		sample, ok, err := s.owner.pull(preroll)
		if err != nil {
			return nil, err
		}
		if ok {
			return sample, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-s.owner.done:
			return nil, engine.ErrEndOfStream
		case <-time.After(pollInterval):
		}
	}
}

func unwrap(el engine.Element) (*Element, bool) {
	switch v := el.(type) {
	case *Element:
		return v, true
	case *SinkElement:
		return v.Element, true
	default:
		return nil, false
	}
}

// Pad implements engine.Pad.
type Pad struct {
	name    string
	element string
	caps    caps.Capability
	linked  atomic.Bool
}

func newPad(name, element string, c caps.Capability) *Pad {
	return &Pad{name: name, element: element, caps: c}
}

func (p *Pad) Name() string          { return p.name }
func (p *Pad) ElementName() string   { return p.element }
func (p *Pad) Caps() caps.Capability { return p.caps }
func (p *Pad) IsLinked() bool        { return p.linked.Load() }

// NewPad builds a free-standing pad, handy for feeding the linker directly.
func NewPad(name, element string, c caps.Capability) *Pad {
	return newPad(name, element, c)
}

// SolidFrame returns a width x height RGB frame filled with one colour.
func SolidFrame(width, height int, r, g, b byte) []byte {
	data := make([]byte, width*height*3)
	for i := 0; i < len(data); i += 3 {
		data[i], data[i+1], data[i+2] = r, g, b
	}
	return data
}

// PadRows lays a packed RGB frame out with rows of stride bytes, filling
// the padding with 0xEE.
func PadRows(frame []byte, width, stride int) []byte {
	row := width * 3
	height := len(frame) / row
	out := bytes.Repeat([]byte{0xEE}, stride*height)
	for y := 0; y < height; y++ {
		copy(out[y*stride:], frame[y*row:(y+1)*row])
	}
	return out
}
