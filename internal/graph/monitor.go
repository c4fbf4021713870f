package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// Monitor is the single consumer of a pipeline's event stream. It logs
// state changes, forwards stream discovery to the Linker and stops the
// graph on fatal errors or end of stream.
type Monitor struct {
	handle *Handle
	events <-chan engine.Event
	ctl    *Controller
	linker *Linker

	mu       sync.Mutex
	duration time.Duration
	queried  bool
	fatal    error
}

// NewMonitor subscribes to the events of the graph owned by ctl.
func NewMonitor(ctl *Controller, linker *Linker) *Monitor {
	return &Monitor{
		handle: ctl.Handle(),
		events: ctl.graph.Pipeline.Events(),
		ctl:    ctl,
		linker: linker,
	}
}

// Run dispatches events until the stream closes, ctx ends or a fatal event
// stopped the graph. A fatal event is returned as *PipelineError or
// *LinkError; normal termination returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			slog.Debug("frame-preview: context cancelled, stopping event monitor")
			return nil

		case ev, ok := <-m.events:
			if !ok {
				slog.Debug("frame-preview: event stream closed")
				return nil
			}
			done, err := m.dispatch(ev)
			ev.Ack()
			if err != nil {
				m.mu.Lock()
				m.fatal = err
				m.mu.Unlock()
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// Err returns the fatal error that ended Run, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

// Duration returns the stream duration queried once the graph was primed,
// or zero when the engine could not tell.
func (m *Monitor) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Monitor) dispatch(ev engine.Event) (done bool, err error) {
	switch ev.Type {
	case engine.EventError:
		category := ClassifyError(ev.Message, ev.Debug)
		slog.Error("frame-preview: pipeline error",
			"source", ev.Source,
			"error", ev.Message,
			"debug", ev.Debug,
			"category", category.String(),
		)
		m.stop()
		return true, &PipelineError{
			Source:   ev.Source,
			Message:  ev.Message,
			Debug:    ev.Debug,
			Category: category,
		}

	case engine.EventWarning:
		slog.Warn("frame-preview: pipeline warning",
			"source", ev.Source,
			"warning", ev.Message,
			"debug", ev.Debug,
		)

	case engine.EventStateChanged:
		slog.Debug("frame-preview: pipeline state changed",
			"from", ev.Old.String(),
			"to", ev.New.String(),
		)
		if ev.New == engine.StatePaused || ev.New == engine.StatePlaying {
			m.queryDuration()
		}

	case engine.EventStreamDiscovered:
		outcome, err := m.linker.OnStreamDiscovered(ev.Pad)
		if err != nil {
			var linkErr *LinkError
			if errors.As(err, &linkErr) {
				slog.Error("frame-preview: dynamic link failed",
					"src", linkErr.Src,
					"dst", linkErr.Dst,
					"error", linkErr.Err,
				)
			} else {
				slog.Error("frame-preview: resync after link failed", "error", err)
			}
			m.stop()
			return true, err
		}
		slog.Debug("frame-preview: stream discovered", "event", ev.String(), "outcome", outcome.String())

	case engine.EventEndOfStream:
		slog.Info("frame-preview: end of stream")
		m.stop()
		return true, nil
	}
	return false, nil
}

// queryDuration asks for the duration once; unknown durations read as zero.
func (m *Monitor) queryDuration() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queried {
		return
	}
	g, ok := m.handle.Lookup()
	if !ok {
		return
	}
	m.queried = true

	d, known := g.Pipeline.QueryDuration()
	if !known {
		d = 0
	}
	m.duration = d
	slog.Info("frame-preview: stream duration", "duration", d, "known", known)
}

func (m *Monitor) stop() {
	if err := m.ctl.Stop(); err != nil {
		slog.Warn("frame-preview: stop after event failed", "error", err)
	}
}
