package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// bytesPerPixel of the packed RGB capability the sink negotiates.
const bytesPerPixel = 3

// pollTimeout bounds each wait on the engine so cancellation and teardown
// are observed promptly.
const pollTimeout = 50 * time.Millisecond

// FrameBuffer is one decoded frame. Data is a private copy laid out as
// Height rows of Stride bytes with no padding.
type FrameBuffer struct {
	Seq     uint64
	TraceID string
	PTS     time.Duration
	Width   int
	Height  int
	Stride  int
	Data    []byte
}

// Geometry returns the frame's width, height and row stride.
func (f *FrameBuffer) Geometry() (width, height, stride int) {
	return f.Width, f.Height, f.Stride
}

// Pixels returns the packed RGB rows.
func (f *FrameBuffer) Pixels() []byte { return f.Data }

// Sink pulls frames from the far end of a graph.
type Sink struct {
	handle  *Handle
	stopped <-chan struct{}
	target  caps.Capability
	preroll bool

	seq atomic.Uint64
}

// NewSink returns a sink on the graph owned by ctl. With preroll set it
// pulls the frame a primed graph holds; otherwise it pulls the playing
// sample queue.
func NewSink(ctl *Controller, preroll bool) *Sink {
	return &Sink{
		handle:  ctl.Handle(),
		stopped: ctl.Stopped(),
		target:  ctl.graph.Target,
		preroll: preroll,
	}
}

// Pull blocks until a frame reaches the sink. It returns ErrNoFrameAvailable
// once the graph stopped, an error wrapping ErrCancelled when ctx ends, and
// *FormatMismatchError when the frame disagrees with the negotiated
// capability.
func (s *Sink) Pull(ctx context.Context) (*FrameBuffer, error) {
	for {
		// a stopped graph wins over a context cancelled because of it
		select {
		case <-s.stopped:
			return nil, ErrNoFrameAvailable
		default:
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		g, ok := s.handle.Lookup()
		if !ok {
			return nil, ErrNoFrameAvailable
		}

		sample, err := g.Sink.TryPull(s.preroll, pollTimeout)
		if errors.Is(err, engine.ErrEndOfStream) || errors.Is(err, engine.ErrClosed) {
			return nil, ErrNoFrameAvailable
		}
		if err != nil {
			return nil, fmt.Errorf("frame sink: %w", err)
		}
		if sample == nil {
			continue
		}

		frame, err := s.frame(sample)
		if err != nil {
			return nil, err
		}
		slog.Debug("frame-preview: frame pulled",
			"seq", frame.Seq,
			"pts", frame.PTS,
			"size_bytes", len(frame.Data),
			"trace_id", frame.TraceID,
		)
		return frame, nil
	}
}

// frame validates a sample against the target capability and wraps it.
func (s *Sink) frame(sample *engine.Sample) (*FrameBuffer, error) {
	got := sample.Caps
	mismatch := &FormatMismatchError{Want: s.target, Got: got, Len: len(sample.Data)}

	if !got.Fixed() || got.Format() != caps.FormatRGB {
		return nil, mismatch
	}
	if !caps.CompatibleAt(caps.BoundaryExact, got, s.target) {
		return nil, mismatch
	}

	stride := bytesPerPixel * got.Width()
	srcStride := sample.Stride
	if srcStride == 0 {
		srcStride = stride
	}
	mismatch.Expected = srcStride * got.Height()
	if srcStride < stride || len(sample.Data) != mismatch.Expected {
		return nil, mismatch
	}

	return &FrameBuffer{
		Seq:     s.seq.Add(1),
		TraceID: uuid.New().String(),
		PTS:     sample.PTS,
		Width:   got.Width(),
		Height:  got.Height(),
		Stride:  stride,
		Data:    packRows(sample.Data, srcStride, stride, got.Height()),
	}, nil
}

// packRows drops the padding engines add to align each row.
func packRows(data []byte, srcStride, rowBytes, height int) []byte {
	if srcStride == rowBytes {
		return data
	}
	packed := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		copy(packed[y*rowBytes:(y+1)*rowBytes], data[y*srcStride:y*srcStride+rowBytes])
	}
	return packed
}
