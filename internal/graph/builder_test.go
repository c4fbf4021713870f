package graph

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/fakeengine"
)

func TestBuild_StaticLinks(t *testing.T) {
	f := newFixture(t, fakeengine.Script{Streams: []caps.Capability{videoStream()}})

	assert.True(t, f.graph.Source.StaticPad("src").IsLinked(), "source → decoder")
	assert.True(t, f.graph.Decoder.StaticPad("sink").IsLinked(), "source → decoder")
	assert.True(t, f.graph.Converter.StaticPad("src").IsLinked(), "converter → scaler")
	assert.True(t, f.graph.Scaler.StaticPad("src").IsLinked(), "scaler → sink")
	assert.True(t, f.graph.Sink.StaticPad("sink").IsLinked(), "scaler → sink")

	assert.False(t, f.graph.Converter.StaticPad("sink").IsLinked(),
		"converter must wait for the decoder's dynamic pad")

	got, err := f.graph.Sink.Property(engine.PropCaps)
	require.NoError(t, err)
	assert.Equal(t, rgb160, got)
	assert.Equal(t, rgb160, f.graph.Target)
}

func TestBuild_SinkQueueIsBounded(t *testing.T) {
	f := newFixture(t, fakeengine.Script{})

	depth, err := f.graph.Sink.Property(engine.PropMaxBuffers)
	require.NoError(t, err)
	assert.Equal(t, SinkQueueDepth, depth)
	assert.Positive(t, SinkQueueDepth, "zero means unbounded")

	drop, err := f.graph.Sink.Property(engine.PropDrop)
	require.NoError(t, err)
	assert.Equal(t, false, drop, "a full queue applies backpressure, frames are never dropped")
}

func TestBuild_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script fakeengine.Script
		path   func(t *testing.T) string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing decoder",
			script: fakeengine.Script{MissingKinds: map[engine.ElementKind]bool{engine.KindDecoder: true}},
			path:   mediaFile,
			check: func(t *testing.T, err error) {
				var ce *ElementCreationError
				require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
				assert.Equal(t, engine.KindDecoder, ce.Kind)
				assert.ErrorIs(t, err, engine.ErrUnknownElement)
			},
		},
		{
			name:   "missing sink",
			script: fakeengine.Script{MissingKinds: map[engine.ElementKind]bool{engine.KindSink: true}},
			path:   mediaFile,
			check: func(t *testing.T, err error) {
				var ce *ElementCreationError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, engine.KindSink, ce.Kind)
			},
		},
		{
			name:   "path does not exist",
			script: fakeengine.Script{},
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "missing.mkv")
			},
			check: func(t *testing.T, err error) {
				var pe *PropertyError
				require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
				assert.Equal(t, NameSource, pe.Element)
				assert.Equal(t, engine.PropLocation, pe.Property)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := fakeengine.New(tt.script)
			require.NoError(t, eng.Initialize())
			defer eng.Finalize()

			g, err := Build(eng, "p", tt.path(t), rgb160)
			require.Error(t, err)
			assert.Nil(t, g)
			tt.check(t, err)

			p := eng.LastPipeline()
			require.NotNil(t, p)
			assert.True(t, p.Closed(), "partial pipeline must be released")
		})
	}
}

func TestBuild_EngineNotInitialized(t *testing.T) {
	eng := fakeengine.New(fakeengine.Script{})

	_, err := Build(eng, "p", mediaFile(t), rgb160)
	assert.ErrorIs(t, err, engine.ErrNotInitialized)
}
