package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// LinkOutcome is what the Linker did with a discovered pad.
type LinkOutcome int

const (
	// LinkIgnored means the pad is not video, or the graph is gone.
	LinkIgnored LinkOutcome = iota
	// LinkDuplicate means a video pad was already linked; first wins.
	LinkDuplicate
	// LinkLinked means the pad now feeds the converter.
	LinkLinked
)

func (o LinkOutcome) String() string {
	switch o {
	case LinkIgnored:
		return "ignored"
	case LinkDuplicate:
		return "duplicate"
	case LinkLinked:
		return "linked"
	default:
		return "unknown"
	}
}

// Resyncer resynchronizes element states after a link.
type Resyncer interface {
	Resync() error
}

// Linker completes the graph when the decoder discovers streams. The first
// video pad is linked to the converter exactly once; everything else is
// ignored. OnStreamDiscovered is safe to call from several goroutines.
type Linker struct {
	handle   *Handle
	resyncer Resyncer

	mu     sync.Mutex
	linked bool
}

// NewLinker returns a linker completing the graph behind handle.
func NewLinker(handle *Handle, resyncer Resyncer) *Linker {
	return &Linker{handle: handle, resyncer: resyncer}
}

// Linked reports whether a video pad feeds the converter.
func (l *Linker) Linked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.linked
}

// OnStreamDiscovered handles one StreamDiscovered event. A failed link
// returns *LinkError and leaves the decoder output stalled; it is not
// retried.
func (l *Linker) OnStreamDiscovered(pad engine.Pad) (LinkOutcome, error) {
	if pad == nil {
		return LinkIgnored, nil
	}
	padCaps := pad.Caps()
	if padCaps.Kind() != caps.KindVideo {
		slog.Debug("frame-preview: ignoring non-video stream",
			"pad", pad.Name(),
			"caps", padCaps.String(),
		)
		return LinkIgnored, nil
	}

	g, ok := l.handle.Lookup()
	if !ok {
		return LinkIgnored, nil
	}

	outcome, err := l.link(g, pad)
	if outcome != LinkLinked || err != nil {
		return outcome, err
	}

	if err := l.resyncer.Resync(); err != nil {
		return LinkLinked, err
	}
	return LinkLinked, nil
}

func (l *Linker) link(g *Graph, pad engine.Pad) (LinkOutcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	convSink := g.Converter.StaticPad("sink")
	if convSink == nil {
		return LinkIgnored, &LinkError{
			Src: padID(pad),
			Dst: g.Converter.Name() + ".sink",
			Err: fmt.Errorf("converter has no sink pad"),
		}
	}
	if l.linked || convSink.IsLinked() {
		slog.Debug("frame-preview: video stream already linked, ignoring",
			"pad", pad.Name(),
		)
		return LinkDuplicate, nil
	}

	if !caps.CompatibleAt(caps.BoundaryKind, pad.Caps(), convSink.Caps()) {
		return LinkIgnored, &LinkError{
			Src: padID(pad),
			Dst: padID(convSink),
			Err: fmt.Errorf("%s cannot feed %s", pad.Caps(), convSink.Caps()),
		}
	}
	if err := g.Pipeline.LinkPads(pad, convSink); err != nil {
		return LinkIgnored, &LinkError{Src: padID(pad), Dst: padID(convSink), Err: err}
	}
	l.linked = true

	slog.Info("frame-preview: video stream linked",
		"pad", padID(pad),
		"caps", pad.Caps().String(),
	)
	return LinkLinked, nil
}

func padID(p engine.Pad) string {
	return p.ElementName() + "." + p.Name()
}
