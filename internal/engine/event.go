package engine

import (
	"fmt"
	"sync"
)

// EventType tags the Event variant.
type EventType int

const (
	EventError EventType = iota
	EventWarning
	EventStateChanged
	EventStreamDiscovered
	EventEndOfStream
)

func (t EventType) String() string {
	switch t {
	case EventError:
		return "error"
	case EventWarning:
		return "warning"
	case EventStateChanged:
		return "state-changed"
	case EventStreamDiscovered:
		return "stream-discovered"
	case EventEndOfStream:
		return "end-of-stream"
	default:
		return "unknown"
	}
}

// Event is a tagged variant delivered on Pipeline.Events. Only the fields
// belonging to Type are set.
type Event struct {
	Type EventType

	// Error, Warning
	Source  string
	Message string
	Debug   string

	// StateChanged
	Old State
	New State

	// StreamDiscovered
	Pad Pad

	ack *ack
}

type ack struct {
	once sync.Once
	ch   chan struct{}
}

// Ack marks the event handled and releases a producer waiting on Acked.
// Safe to call more than once and on events that carry no acknowledgement.
func (e Event) Ack() {
	if e.ack == nil {
		return
	}
	e.ack.once.Do(func() { close(e.ack.ch) })
}

// Acked is closed once the consumer handled the event. Events built
// without an acknowledgement return an already closed channel.
func (e Event) Acked() <-chan struct{} {
	if e.ack == nil {
		return closedChan
	}
	return e.ack.ch
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// ErrorEvent builds an Error event.
func ErrorEvent(source, message, debug string) Event {
	return Event{Type: EventError, Source: source, Message: message, Debug: debug}
}

// WarningEvent builds a Warning event.
func WarningEvent(source, message, debug string) Event {
	return Event{Type: EventWarning, Source: source, Message: message, Debug: debug}
}

// StateChangedEvent builds a StateChanged event.
func StateChangedEvent(old, new State) Event {
	return Event{Type: EventStateChanged, Old: old, New: new}
}

// StreamDiscoveredEvent builds a StreamDiscovered event. The decoder holds
// the new pad back until the consumer acknowledges the event, so a link made
// while handling it is in place before the first buffer is pushed.
func StreamDiscoveredEvent(pad Pad) Event {
	return Event{Type: EventStreamDiscovered, Pad: pad, ack: &ack{ch: make(chan struct{})}}
}

// EndOfStreamEvent builds an EndOfStream event.
func EndOfStreamEvent() Event {
	return Event{Type: EventEndOfStream}
}

func (e Event) String() string {
	switch e.Type {
	case EventError, EventWarning:
		return fmt.Sprintf("%s from %s: %s", e.Type, e.Source, e.Message)
	case EventStateChanged:
		return fmt.Sprintf("%s %s→%s", e.Type, e.Old, e.New)
	case EventStreamDiscovered:
		if e.Pad == nil {
			return e.Type.String()
		}
		return fmt.Sprintf("%s %s.%s (%s)", e.Type, e.Pad.ElementName(), e.Pad.Name(), e.Pad.Caps())
	default:
		return e.Type.String()
	}
}
