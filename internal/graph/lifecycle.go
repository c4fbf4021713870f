package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/looplab/fsm"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// Lifecycle states.
const (
	StateIdle    = "idle"
	StatePrimed  = "primed"
	StatePlaying = "playing"
	StateStopped = "stopped"
)

const (
	eventPrime = "prime"
	eventRun   = "run"
	eventStop  = "stop"
)

func newLifecycleFSM(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventPrime, Src: []string{StateIdle}, Dst: StatePrimed},
			{Name: eventRun, Src: []string{StateIdle, StatePrimed}, Dst: StatePlaying},
			{Name: eventStop, Src: []string{StateIdle, StatePrimed, StatePlaying}, Dst: StateStopped},
		},
		callbacks,
	)
}

// VisualizeLifecycle returns the lifecycle state machine in graphviz syntax.
func VisualizeLifecycle() string {
	return fsm.Visualize(newLifecycleFSM(nil))
}

// Controller owns a Graph and drives it through
// idle → primed → (playing) → stopped. Stopped is terminal and reachable
// from every state. All methods are safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	graph   *Graph
	handle  *Handle
	machine *fsm.FSM

	stopped  chan struct{}
	released bool
	stopErr  error
	resyncs  atomic.Int64
}

// NewController takes ownership of g.
func NewController(g *Graph) *Controller {
	c := &Controller{
		graph:   g,
		handle:  newHandle(g),
		stopped: make(chan struct{}),
	}
	c.machine = newLifecycleFSM(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			slog.Info("frame-preview: lifecycle transition",
				"pipeline", g.Pipeline.Name(),
				"event", e.Event,
				"from", e.Src,
				"to", e.Dst,
			)
		},
	})
	return c
}

// Handle returns a non-owning reference to the controlled graph.
func (c *Controller) Handle() *Handle { return c.handle }

// State returns the current lifecycle state.
func (c *Controller) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// Stopped is closed once the graph reached the stopped state.
func (c *Controller) Stopped() <-chan struct{} { return c.stopped }

// Resyncs returns how many times Resync reached the engine.
func (c *Controller) Resyncs() int { return int(c.resyncs.Load()) }

// Prime pauses the graph: the decoder parses the container and announces
// its streams, and the sink prerolls a single frame without playing
// through the timeline.
func (c *Controller) Prime(ctx context.Context) error {
	return c.transition(ctx, eventPrime, engine.StatePaused)
}

// Run sets the graph playing so the sink produces every decoded frame.
func (c *Controller) Run(ctx context.Context) error {
	return c.transition(ctx, eventRun, engine.StatePlaying)
}

func (c *Controller) transition(ctx context.Context, event string, target engine.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.machine.Can(event) {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, c.machine.Current())
	}
	if err := c.graph.Pipeline.SetState(target); err != nil {
		return fmt.Errorf("lifecycle: %s: set state %s: %w", event, target, err)
	}
	if err := c.machine.Event(ctx, event); err != nil {
		return fmt.Errorf("lifecycle: %s: %w", event, err)
	}
	return nil
}

// Resync brings every element's running state in line with the graph.
// Newly linked elements start inert, so this runs after every dynamic
// link. Redundant calls are harmless; after Stop it does nothing.
func (c *Controller) Resync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	if err := c.graph.Pipeline.SyncChildren(); err != nil {
		return fmt.Errorf("lifecycle: resync: %w", err)
	}
	c.resyncs.Add(1)
	return nil
}

// Stop releases the graph. It is safe from any state, from any goroutine,
// and more than once; later calls return the first call's result.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return c.stopErr
	}
	c.released = true

	from := c.machine.Current()
	if err := c.machine.Event(context.Background(), eventStop); err != nil {
		// every non-terminal state has a stop transition
		slog.Error("frame-preview: lifecycle stop transition failed", "from", from, "error", err)
	}

	c.handle.release()
	if err := c.graph.Pipeline.Close(); err != nil {
		c.stopErr = fmt.Errorf("lifecycle: release pipeline: %w", err)
	}
	close(c.stopped)

	return c.stopErr
}
