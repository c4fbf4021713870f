package gstengine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

const (
	// busPollTimeout bounds each bus pop so Close is observed promptly.
	busPollTimeout = 50 * time.Millisecond

	eventBufferSize = 64
)

type signalHandler struct {
	element *gst.Element
	handle  glib.SignalHandle
}

// Pipeline implements engine.Pipeline on a gst.Pipeline.
type Pipeline struct {
	pipeline *gst.Pipeline
	name     string

	mu       sync.Mutex
	elements []*Element
	signals  []signalHandler
	closed   bool

	events   chan engine.Event
	done     chan struct{}
	watcher  sync.WaitGroup
	emitters sync.WaitGroup
}

func newPipeline(p *gst.Pipeline) *Pipeline {
	pl := &Pipeline{
		pipeline: p,
		name:     p.GetName(),
		events:   make(chan engine.Event, eventBufferSize),
		done:     make(chan struct{}),
	}
	pl.watcher.Add(1)
	go pl.watchBus()
	return pl
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) NewElement(kind engine.ElementKind, name string) (engine.Element, error) {
	factory, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no factory for %s", engine.ErrUnknownElement, kind)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, engine.ErrClosed
	}

	el, err := gst.NewElementWithName(factory, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrUnknownElement, factory, err)
	}
	if err := p.pipeline.Add(el); err != nil {
		return nil, fmt.Errorf("gstengine: add %s to pipeline: %w", name, err)
	}

	wrapped := &Element{el: el, name: name, kind: kind}
	p.elements = append(p.elements, wrapped)

	switch kind {
	case engine.KindDecoder:
		handle, err := el.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
			p.onPadAdded(name, pad)
		})
		if err != nil {
			return nil, fmt.Errorf("gstengine: connect pad-added on %s: %w", name, err)
		}
		p.signals = append(p.signals, signalHandler{element: el, handle: handle})

	case engine.KindSink:
		return newSinkElement(wrapped, p), nil
	}
	return wrapped, nil
}

func (p *Pipeline) Link(src, dst engine.Element) error {
	s, ok1 := unwrapElement(src)
	d, ok2 := unwrapElement(dst)
	if !ok1 || !ok2 {
		return errors.New("gstengine: foreign element")
	}
	if err := s.el.Link(d.el); err != nil {
		return fmt.Errorf("gstengine: link %s → %s: %w", s.name, d.name, err)
	}
	return nil
}

func (p *Pipeline) LinkPads(src, dst engine.Pad) error {
	s, ok1 := src.(*Pad)
	d, ok2 := dst.(*Pad)
	if !ok1 || !ok2 {
		return errors.New("gstengine: foreign pad")
	}
	if ret := s.pad.Link(d.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("gstengine: pad link returned %v", ret)
	}
	return nil
}

func (p *Pipeline) SetState(state engine.State) error {
	if p.isClosed() {
		return engine.ErrClosed
	}
	if err := p.pipeline.SetState(toGstState(state)); err != nil {
		return fmt.Errorf("gstengine: set state %s: %w", state, err)
	}
	return nil
}

// SyncChildren brings every element to the pipeline's state. Elements
// linked after the pipeline left NULL stay inert until this runs.
func (p *Pipeline) SyncChildren() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return engine.ErrClosed
	}
	elements := append([]*Element(nil), p.elements...)
	p.mu.Unlock()

	var failed []string
	for _, e := range elements {
		if !e.el.SyncStateWithParent() {
			failed = append(failed, e.name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("gstengine: could not sync state of %v", failed)
	}
	return nil
}

func (p *Pipeline) QueryDuration() (time.Duration, bool) {
	ok, d := p.pipeline.QueryDuration(gst.FormatTime)
	if !ok || d <= 0 {
		return 0, false
	}
	return time.Duration(d), true
}

func (p *Pipeline) Events() <-chan engine.Event { return p.events }

// Close sets the pipeline to NULL, which joins the streaming threads, then
// closes the event channel. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	signals := p.signals
	p.signals = nil
	p.mu.Unlock()

	for _, s := range signals {
		s.element.HandlerDisconnect(s.handle)
	}

	err := p.pipeline.SetState(gst.StateNull)

	p.emitters.Wait()
	p.watcher.Wait()
	close(p.events)

	if err != nil {
		return fmt.Errorf("gstengine: set state NULL: %w", err)
	}
	slog.Debug("frame-preview: pipeline released", "pipeline", p.name)
	return nil
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// onPadAdded runs on a GStreamer streaming thread. decodebin pushes data
// on the pad as soon as the handler returns, so the handler waits until the
// event consumer has acted on the pad or the pipeline closes.
func (p *Pipeline) onPadAdded(element string, pad *gst.Pad) {
	wrapped := newPad(pad, element)
	slog.Debug("frame-preview: pad-added signal received",
		"element", element,
		"pad", wrapped.Name(),
	)

	ev := engine.StreamDiscoveredEvent(wrapped)
	if !p.emit(ev) {
		return
	}
	select {
	case <-ev.Acked():
	case <-p.done:
	}
}

// watchBus polls the bus like a blocking read with a short timeout, so the
// goroutine notices Close without a bus watch main loop.
func (p *Pipeline) watchBus() {
	defer p.watcher.Done()

	bus := p.pipeline.GetPipelineBus()
	for {
		select {
		case <-p.done:
			return
		default:
		}

		msg := bus.TimedPop(busPollTimeout)
		if msg == nil {
			continue
		}
		if ev, ok := p.translate(msg); ok {
			p.emit(ev)
		}
	}
}

func (p *Pipeline) translate(msg *gst.Message) (engine.Event, bool) {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		return engine.ErrorEvent(msg.Source(), gerr.Error(), gerr.DebugString()), true

	case gst.MessageWarning:
		gerr := msg.ParseWarning()
		return engine.WarningEvent(msg.Source(), gerr.Error(), gerr.DebugString()), true

	case gst.MessageStateChanged:
		// children report their own transitions; only the pipeline's matter
		if msg.Source() != p.name {
			return engine.Event{}, false
		}
		old, new := msg.ParseStateChanged()
		return engine.StateChangedEvent(fromGstState(old), fromGstState(new)), true

	case gst.MessageEOS:
		return engine.EndOfStreamEvent(), true
	}
	return engine.Event{}, false
}

// emit queues ev and reports whether it was delivered.
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
