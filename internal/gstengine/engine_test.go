package gstengine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/graph"
)

// mediaEnv names a video file used by the integration tests.
const mediaEnv = "FRAME_PREVIEW_TEST_MEDIA"

var (
	sharedOnce sync.Once
	shared     *Engine
)

// testEngine initializes GStreamer once per test binary; Finalize is never
// called because GStreamer cannot be initialized twice.
func testEngine(t *testing.T) *Engine {
	t.Helper()
	if os.Getenv(mediaEnv) == "" {
		t.Skipf("Skipping test: %s not set (requires GStreamer and a video file)", mediaEnv)
	}
	sharedOnce.Do(func() {
		shared = New()
		if err := shared.Initialize(); err != nil {
			shared = nil
		}
	})
	if shared == nil {
		t.Skip("Skipping test: GStreamer not available")
	}
	return shared
}

func TestFactories_CoverEveryKind(t *testing.T) {
	for _, kind := range []engine.ElementKind{
		engine.KindSource, engine.KindDecoder, engine.KindConverter, engine.KindScaler, engine.KindSink,
	} {
		assert.NotEmpty(t, factories[kind], "kind %s", kind)
	}
}

func TestStateConversion_RoundTrip(t *testing.T) {
	for _, s := range []engine.State{engine.StateNull, engine.StateReady, engine.StatePaused, engine.StatePlaying} {
		assert.Equal(t, s, fromGstState(toGstState(s)))
	}
}

func TestRGBStride(t *testing.T) {
	tests := []struct {
		width, want int
	}{
		{1, 4},
		{2, 8},
		{4, 12},
		{150, 452},
		{160, 480},
		{161, 484},
		{8191, 24576},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rgbStride(tt.width), "width %d", tt.width)
	}
}

func TestNewPipeline_RequiresInitialize(t *testing.T) {
	_, err := New().NewPipeline("p")
	assert.ErrorIs(t, err, engine.ErrNotInitialized)
}

func TestBuild_MissingFile(t *testing.T) {
	eng := testEngine(t)

	target := caps.Video().WithFormat(caps.FormatRGB).WithSize(160, 0).WithAspect(1, 1)
	_, err := graph.Build(eng, "missing", filepath.Join(t.TempDir(), "nope.mp4"), target)

	var pe *graph.PropertyError
	require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
	assert.Equal(t, graph.NameSource, pe.Element)
}

func TestPreview_SingleFrame(t *testing.T) {
	eng := testEngine(t)

	// 150 pixels of RGB is not a multiple of 4 bytes, so GStreamer pads rows
	for _, width := range []int{160, 150} {
		t.Run(fmt.Sprintf("width %d", width), func(t *testing.T) {
			target := caps.Video().WithFormat(caps.FormatRGB).WithSize(width, 0).WithAspect(1, 1)
			g, err := graph.Build(eng, fmt.Sprintf("single-%d", width), os.Getenv(mediaEnv), target)
			require.NoError(t, err)

			ctl := graph.NewController(g)
			defer ctl.Stop()
			linker := graph.NewLinker(ctl.Handle(), ctl)
			monitor := graph.NewMonitor(ctl, linker)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- monitor.Run(ctx) }()

			require.NoError(t, ctl.Prime(ctx))
			frame, err := graph.NewSink(ctl, true).Pull(ctx)
			require.NoError(t, err)

			assert.Equal(t, width, frame.Width)
			assert.Positive(t, frame.Height)
			assert.Equal(t, 3*width, frame.Stride)
			assert.Len(t, frame.Data, 3*width*frame.Height)
			assert.True(t, linker.Linked())

			require.NoError(t, ctl.Stop())
			require.NoError(t, <-done)
		})
	}
}
