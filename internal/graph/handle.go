package graph

import "sync/atomic"

// Handle is a non-owning reference to a Graph. Event handlers and the sink
// hold a Handle instead of the Graph so that teardown never waits on them;
// once the owner releases the graph, Lookup reports false and handlers
// treat the event as a no-op.
type Handle struct {
	g atomic.Pointer[Graph]
}

func newHandle(g *Graph) *Handle {
	h := &Handle{}
	h.g.Store(g)
	return h
}

// Lookup returns the graph while it is alive.
func (h *Handle) Lookup() (*Graph, bool) {
	g := h.g.Load()
	return g, g != nil
}

func (h *Handle) release() {
	h.g.Store(nil)
}
