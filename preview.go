package framepreview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/graph"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/render"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/stats"
)

// Preview renders frames of one media file. A Preview runs once.
type Preview struct {
	cfg  Config
	path string

	ctl     *graph.Controller
	linker  *graph.Linker
	monitor *graph.Monitor

	mu    sync.Mutex
	stats CaptureStats
}

// Open validates cfg and assembles the decode graph for path on eng, which
// must be initialized. Nothing is decoded until Run.
func Open(eng engine.Engine, path string, cfg Config) (*Preview, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g, err := graph.Build(eng, "frame-preview", path, cfg.target())
	if err != nil {
		return nil, err
	}

	ctl := graph.NewController(g)
	linker := graph.NewLinker(ctl.Handle(), ctl)

	slog.Info("frame-preview: graph assembled",
		"path", path,
		"mode", cfg.Mode.String(),
		"target", cfg.target().String(),
	)

	return &Preview{
		cfg:     cfg,
		path:    path,
		ctl:     ctl,
		linker:  linker,
		monitor: graph.NewMonitor(ctl, linker),
	}, nil
}

// Run drives the graph and renders frames to w until the capture is
// complete, the graph stops or ctx ends. The graph is stopped before Run
// returns. A fatal engine error takes precedence over the error the
// capture loop observed as a consequence of it; when no frame was rendered
// at all, the result matches both the engine error and ErrNoFrameAvailable.
func (p *Preview) Run(ctx context.Context, w io.Writer) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.monitor.Run(gctx)
	})

	var captureErr error
	g.Go(func() error {
		defer p.stop()
		if p.cfg.Mode == ModeContinuous {
			captureErr = p.captureContinuous(gctx, w)
		} else {
			captureErr = p.captureSingle(gctx, w)
		}
		return captureErr
	})

	err := g.Wait()
	if fatal := p.monitor.Err(); fatal != nil {
		if errors.Is(captureErr, ErrNoFrameAvailable) {
			return errors.Join(fatal, captureErr)
		}
		return fatal
	}
	return err
}

// Close releases the graph. Safe after Run and more than once.
func (p *Preview) Close() error {
	return p.ctl.Stop()
}

// Stats returns the statistics of the last Run.
func (p *Preview) Stats() CaptureStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Preview) stop() {
	if err := p.ctl.Stop(); err != nil {
		slog.Warn("frame-preview: stop failed", "error", err)
	}
}

func (p *Preview) captureSingle(ctx context.Context, w io.Writer) error {
	start := time.Now()
	if err := p.ctl.Prime(ctx); err != nil {
		return err
	}

	frame, err := graph.NewSink(p.ctl, true).Pull(ctx)
	if err != nil {
		return err
	}
	if err := render.RenderFrame(w, frame); err != nil {
		return fmt.Errorf("frame-preview: render frame %d: %w", frame.Seq, err)
	}

	p.mu.Lock()
	p.stats = CaptureStats{
		Frames:         1,
		StreamDuration: p.monitor.Duration(),
		Elapsed:        time.Since(start),
	}
	p.mu.Unlock()

	slog.Info("frame-preview: frame rendered",
		"width", frame.Width,
		"height", frame.Height,
		"pts", frame.PTS,
		"trace_id", frame.TraceID,
	)
	return nil
}

func (p *Preview) captureContinuous(ctx context.Context, w io.Writer) error {
	if err := p.ctl.Run(ctx); err != nil {
		return err
	}

	sink := graph.NewSink(p.ctl, false)
	recorder := stats.NewRecorder()
	defer func() { p.record(recorder.Summary()) }()

	for n := 0; p.cfg.MaxFrames == 0 || n < p.cfg.MaxFrames; n++ {
		frame, err := sink.Pull(ctx)
		if errors.Is(err, graph.ErrNoFrameAvailable) && n > 0 {
			// end of stream after at least one frame
			return nil
		}
		if err != nil {
			return err
		}

		if p.cfg.ClearBetweenFrames {
			if _, err := io.WriteString(w, render.CursorHome); err != nil {
				return fmt.Errorf("frame-preview: render frame %d: %w", frame.Seq, err)
			}
		}
		if err := render.RenderFrame(w, frame); err != nil {
			return fmt.Errorf("frame-preview: render frame %d: %w", frame.Seq, err)
		}
		recorder.Observe(frame.PTS)
	}

	slog.Debug("frame-preview: frame limit reached", "max_frames", p.cfg.MaxFrames)
	return nil
}

func (p *Preview) record(s stats.Summary) {
	cs := CaptureStats{
		Frames:         s.Frames,
		StreamDuration: p.monitor.Duration(),
		MediaSpan:      s.MediaSpan,
		Elapsed:        s.Duration,
		FPSMean:        s.FPSMean,
		FPSStdDev:      s.FPSStdDev,
		FPSMin:         s.FPSMin,
		FPSMax:         s.FPSMax,
		JitterMean:     s.JitterMean,
		IsStable:       s.IsStable,
	}

	p.mu.Lock()
	p.stats = cs
	p.mu.Unlock()

	slog.Info("frame-preview: capture complete",
		"path", p.path,
		"frames", cs.Frames,
		"elapsed", cs.Elapsed,
		"media_span", cs.MediaSpan,
		"fps_mean", fmt.Sprintf("%.2f", cs.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", cs.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", cs.FPSMin, cs.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", cs.JitterMean),
		"stable", cs.IsStable,
	)
}
