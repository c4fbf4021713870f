package gstengine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// Element implements engine.Element on a gst.Element.
type Element struct {
	el   *gst.Element
	name string
	kind engine.ElementKind

	mu   sync.Mutex
	caps *caps.Capability
}

func (e *Element) Name() string             { return e.name }
func (e *Element) Kind() engine.ElementKind { return e.kind }

// SetProperty sets a GObject property. The location of a source must name
// a readable file; caps take a caps.Capability.
func (e *Element) SetProperty(name string, value any) error {
	switch {
	case name == engine.PropLocation && e.kind == engine.KindSource:
		path, ok := value.(string)
		if !ok {
			return fmt.Errorf("location must be a string, got %T", value)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		f.Close()
		return e.el.SetProperty(name, path)

	case name == engine.PropCaps:
		c, ok := value.(caps.Capability)
		if !ok {
			return fmt.Errorf("caps must be a capability, got %T", value)
		}
		gc := gst.NewCapsFromString(c.String())
		if gc == nil {
			return fmt.Errorf("invalid caps %q", c.String())
		}
		if err := e.el.SetProperty(name, gc); err != nil {
			return err
		}
		e.mu.Lock()
		e.caps = &c
		e.mu.Unlock()
		return nil
	}
	return e.el.SetProperty(name, value)
}

func (e *Element) Property(name string) (any, error) {
	if name == engine.PropCaps {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.caps != nil {
			return *e.caps, nil
		}
	}
	return e.el.GetProperty(name)
}

func (e *Element) StaticPad(name string) engine.Pad {
	pad := e.el.GetStaticPad(name)
	if pad == nil {
		return nil
	}
	return newPad(pad, e.name)
}

func unwrapElement(el engine.Element) (*Element, bool) {
	switch v := el.(type) {
	case *Element:
		return v, true
	case *SinkElement:
		return v.Element, true
	default:
		return nil, false
	}
}

// SinkElement implements engine.SinkElement on an appsink.
type SinkElement struct {
	*Element
	sink  *app.Sink
	owner *Pipeline
}

func newSinkElement(e *Element, owner *Pipeline) *SinkElement {
	return &SinkElement{Element: e, sink: app.SinkFromElement(e.el), owner: owner}
}

// TryPull waits up to timeout for a sample. A nil sample with a nil error
// means the timeout elapsed.
func (s *SinkElement) TryPull(preroll bool, timeout time.Duration) (*engine.Sample, error) {
	if s.owner.isClosed() {
		return nil, engine.ErrClosed
	}

	var sample *gst.Sample
	if preroll {
		sample = s.sink.TryPullPreroll(timeout)
	} else {
		sample = s.sink.TryPullSample(timeout)
	}
	if sample == nil {
		if s.sink.IsEOS() {
			return nil, engine.ErrEndOfStream
		}
		return nil, nil
	}
	return convertSample(sample)
}

// convertSample copies the sample out of GStreamer, which reuses buffers.
func convertSample(sample *gst.Sample) (*engine.Sample, error) {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, errors.New("gstengine: sample without buffer")
	}

	c := caps.Any()
	if gc := sample.GetCaps(); gc != nil {
		parsed, err := caps.Parse(gc.String())
		if err != nil {
			return nil, fmt.Errorf("gstengine: sample caps: %w", err)
		}
		c = parsed
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	pts := time.Duration(buffer.PresentationTimestamp())
	if pts < 0 {
		pts = 0
	}

	out := &engine.Sample{Data: frameData, Caps: c, PTS: pts}
	if c.Format() == caps.FormatRGB && c.Width() > 0 {
		out.Stride = rgbStride(c.Width())
	}
	return out, nil
}

// rgbStride is the row length of a packed RGB video frame in GStreamer:
// three bytes per pixel rounded up to a multiple of four.
func rgbStride(width int) int {
	return (3*width + 3) &^ 3
}

// Pad implements engine.Pad on a gst.Pad.
type Pad struct {
	pad     *gst.Pad
	element string
}

func newPad(pad *gst.Pad, element string) *Pad {
	return &Pad{pad: pad, element: element}
}

func (p *Pad) Name() string        { return p.pad.GetName() }
func (p *Pad) ElementName() string { return p.element }
func (p *Pad) IsLinked() bool      { return p.pad.IsLinked() }

// Caps returns the negotiated caps, or what the pad could produce or
// accept when nothing is negotiated yet.
func (p *Pad) Caps() caps.Capability {
	gc := p.pad.GetCurrentCaps()
	if gc == nil {
		gc = p.pad.QueryCaps(nil)
	}
	if gc == nil {
		return caps.Any()
	}

	c, err := caps.Parse(gc.String())
	if err != nil {
		slog.Debug("frame-preview: unparsable pad caps",
			"pad", p.element+"."+p.Name(),
			"caps", gc.String(),
			"error", err,
		)
		return caps.Any()
	}
	return c
}
