package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/fakeengine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var rgb160 = caps.Video().WithFormat(caps.FormatRGB).WithSize(160, 0).WithAspect(1, 1)

func videoStream() caps.Capability {
	return caps.Video().WithFormat("I420").WithSize(1920, 1080)
}

func audioStream() caps.Capability {
	return caps.Of(caps.KindAudio)
}

// fixture bundles a graph assembled on a fake engine.
type fixture struct {
	eng      *fakeengine.Engine
	pipeline *fakeengine.Pipeline
	graph    *Graph
	ctl      *Controller
	linker   *Linker
	monitor  *Monitor
}

func mediaFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a container"), 0o644))
	return path
}

func newFixture(t *testing.T, script fakeengine.Script) *fixture {
	t.Helper()
	return newFixtureWithTarget(t, script, rgb160)
}

func newFixtureWithTarget(t *testing.T, script fakeengine.Script, target caps.Capability) *fixture {
	t.Helper()

	eng := fakeengine.New(script)
	require.NoError(t, eng.Initialize())
	t.Cleanup(eng.Finalize)

	g, err := Build(eng, "test-pipeline", mediaFile(t), target)
	require.NoError(t, err)

	ctl := NewController(g)
	t.Cleanup(func() { _ = ctl.Stop() })

	linker := NewLinker(ctl.Handle(), ctl)
	return &fixture{
		eng:      eng,
		pipeline: eng.LastPipeline(),
		graph:    g,
		ctl:      ctl,
		linker:   linker,
		monitor:  NewMonitor(ctl, linker),
	}
}

// runMonitor starts the monitor and returns a channel with its result.
func (f *fixture) runMonitor(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() { done <- f.monitor.Run(ctx) }()
	return done
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return nil
	}
}

func solidFrames(n, width, height int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = fakeengine.SolidFrame(width, height, byte(i), 0x80, 0xff)
	}
	return frames
}
