package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/fakeengine"
)

func frameCaps(w, h int) caps.Capability {
	return caps.Video().WithFormat(caps.FormatRGB).WithSize(w, h).WithAspect(1, 1)
}

func TestSink_PrerollSingleFrame(t *testing.T) {
	frames := solidFrames(1, 160, 90)
	f := newFixture(t, fakeengine.Script{
		Streams:   []caps.Capability{audioStream(), videoStream()},
		Frames:    frames,
		FrameCaps: frameCaps(160, 90),
	})
	ctx := context.Background()

	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Prime(ctx))

	frame, err := NewSink(f.ctl, true).Pull(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, 160, frame.Width)
	assert.Equal(t, 90, frame.Height)
	assert.Equal(t, 160*3, frame.Stride)
	assert.Len(t, frame.Data, frame.Stride*frame.Height)
	assert.Equal(t, frames[0], frame.Data)
	_, err = uuid.Parse(frame.TraceID)
	assert.NoError(t, err, "trace id must be a uuid")

	assert.Equal(t, StatePrimed, f.ctl.State(), "preroll does not play the timeline")

	require.NoError(t, f.ctl.Stop())
	require.NoError(t, waitErr(t, done))
}

func TestSink_FormatMismatch(t *testing.T) {
	tests := []struct {
		name      string
		frame     []byte
		frameCaps caps.Capability
		expected  int
	}{
		{
			name:      "width differs from target",
			frame:     fakeengine.SolidFrame(320, 90, 1, 2, 3),
			frameCaps: frameCaps(320, 90),
		},
		{
			name:      "buffer shorter than geometry",
			frame:     fakeengine.SolidFrame(160, 80, 1, 2, 3),
			frameCaps: frameCaps(160, 90),
			expected:  160 * 90 * 3,
		},
		{
			name:      "not packed rgb",
			frame:     fakeengine.SolidFrame(160, 90, 1, 2, 3),
			frameCaps: caps.Video().WithFormat("I420").WithSize(160, 90),
		},
		{
			name:      "unfixed size",
			frame:     fakeengine.SolidFrame(160, 90, 1, 2, 3),
			frameCaps: caps.Video().WithFormat(caps.FormatRGB).WithSize(160, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeengine.Script{
				Streams:   []caps.Capability{videoStream()},
				Frames:    [][]byte{tt.frame},
				FrameCaps: tt.frameCaps,
			})
			ctx := context.Background()
			done := f.runMonitor(ctx)
			require.NoError(t, f.ctl.Prime(ctx))

			frame, err := NewSink(f.ctl, true).Pull(ctx)
			assert.Nil(t, frame)

			var fm *FormatMismatchError
			require.True(t, errors.As(err, &fm), "got %T: %v", err, err)
			assert.Equal(t, rgb160, fm.Want)
			assert.Equal(t, tt.frameCaps, fm.Got)
			assert.Equal(t, len(tt.frame), fm.Len)
			assert.Equal(t, tt.expected, fm.Expected)

			require.NoError(t, f.ctl.Stop())
			require.NoError(t, waitErr(t, done))
		})
	}
}

func TestSink_PaddedRowsArePacked(t *testing.T) {
	const width, height, stride = 150, 84, 452 // rows aligned to 4 bytes

	packed := fakeengine.SolidFrame(width, height, 9, 8, 7)
	packed[len(packed)-1] = 0x42
	f := newFixtureWithTarget(t, fakeengine.Script{
		Streams:     []caps.Capability{videoStream()},
		Frames:      [][]byte{fakeengine.PadRows(packed, width, stride)},
		FrameCaps:   frameCaps(width, height),
		FrameStride: stride,
	}, rgb160.WithSize(width, 0))
	ctx := context.Background()
	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Prime(ctx))

	frame, err := NewSink(f.ctl, true).Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, width*3, frame.Stride)
	assert.Equal(t, packed, frame.Data)

	require.NoError(t, f.ctl.Stop())
	require.NoError(t, waitErr(t, done))
}

func TestSink_StrideShorterThanRow(t *testing.T) {
	f := newFixture(t, fakeengine.Script{
		Streams:     []caps.Capability{videoStream()},
		Frames:      [][]byte{make([]byte, 400*90)},
		FrameCaps:   frameCaps(160, 90),
		FrameStride: 400,
	})
	ctx := context.Background()
	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Prime(ctx))

	_, err := NewSink(f.ctl, true).Pull(ctx)
	var fm *FormatMismatchError
	require.True(t, errors.As(err, &fm), "got %T: %v", err, err)

	require.NoError(t, f.ctl.Stop())
	require.NoError(t, waitErr(t, done))
}

func TestPackRows(t *testing.T) {
	padded := []byte{
		1, 2, 3, 4, 5, 6, 0, 0,
		7, 8, 9, 10, 11, 12, 0, 0,
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, packRows(padded, 8, 6, 2))

	tight := []byte{1, 2, 3}
	assert.Equal(t, tight, packRows(tight, 3, 3, 1))
}

func TestSink_AudioOnlyHasNoFrame(t *testing.T) {
	f := newFixture(t, fakeengine.Script{
		Streams: []caps.Capability{audioStream()},
		Frames:  solidFrames(1, 160, 90),
	})
	ctx := context.Background()
	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Prime(ctx))

	_, err := NewSink(f.ctl, true).Pull(ctx)
	assert.ErrorIs(t, err, ErrNoFrameAvailable)

	var pe *PipelineError
	assert.True(t, errors.As(waitErr(t, done), &pe))
}

func TestSink_Cancelled(t *testing.T) {
	f := newFixture(t, fakeengine.Script{Streams: []caps.Capability{videoStream()}})

	ctx, cancel := context.WithCancel(context.Background())
	done := f.runMonitor(context.Background())
	require.NoError(t, f.ctl.Prime(ctx))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewSink(f.ctl, true).Pull(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, f.ctl.Stop())
	require.NoError(t, waitErr(t, done))
}

func TestSink_AfterStop(t *testing.T) {
	f := newFixture(t, fakeengine.Script{Streams: []caps.Capability{videoStream()}})
	require.NoError(t, f.ctl.Stop())

	_, err := NewSink(f.ctl, true).Pull(context.Background())
	assert.ErrorIs(t, err, ErrNoFrameAvailable)
}

func TestSink_ContinuousUntilEndOfStream(t *testing.T) {
	frames := solidFrames(4, 160, 90)
	f := newFixture(t, fakeengine.Script{
		Streams:   []caps.Capability{videoStream()},
		Frames:    frames,
		FrameCaps: frameCaps(160, 90),
	})
	ctx := context.Background()
	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Run(ctx))

	sink := NewSink(f.ctl, false)
	for i := range frames {
		frame, err := sink.Pull(ctx)
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, uint64(i+1), frame.Seq)
		assert.Equal(t, time.Duration(i)*40*time.Millisecond, frame.PTS)
		assert.Equal(t, frames[i], frame.Data)
	}

	_, err := sink.Pull(ctx)
	assert.ErrorIs(t, err, ErrNoFrameAvailable)

	require.NoError(t, waitErr(t, done), "end of stream is not an error")
	assert.Equal(t, StateStopped, f.ctl.State())
}

func TestSink_DecodeErrorMidStream(t *testing.T) {
	f := newFixture(t, fakeengine.Script{
		Streams:   []caps.Capability{videoStream()},
		Frames:    solidFrames(5, 160, 90),
		FrameCaps: frameCaps(160, 90),
		FailAfter: 2,
	})
	ctx := context.Background()
	done := f.runMonitor(ctx)
	require.NoError(t, f.ctl.Run(ctx))

	sink := NewSink(f.ctl, false)
	for i := 0; i < 2; i++ {
		_, err := sink.Pull(ctx)
		require.NoError(t, err)
	}

	_, err := sink.Pull(ctx)
	assert.ErrorIs(t, err, ErrNoFrameAvailable)

	var pe *PipelineError
	require.True(t, errors.As(waitErr(t, done), &pe))
	assert.Equal(t, ErrCategoryCodec, pe.Category)
	assert.Equal(t, StateStopped, f.ctl.State())
}
