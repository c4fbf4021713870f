package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

var (
	// ErrNoFrameAvailable is returned by Sink.Pull when the graph stopped
	// before a frame reached the sink.
	ErrNoFrameAvailable = errors.New("no frame available: graph stopped")

	// ErrCancelled is returned by Sink.Pull when the caller's context ends.
	ErrCancelled = errors.New("frame pull cancelled")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// allowed from the current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// ElementCreationError reports that the engine could not construct a stage.
type ElementCreationError struct {
	Kind engine.ElementKind
	Name string
	Err  error
}

func (e *ElementCreationError) Error() string {
	return fmt.Sprintf("create %s element %q: %v", e.Kind, e.Name, e.Err)
}

func (e *ElementCreationError) Unwrap() error { return e.Err }

// PropertyError reports that an element rejected a configuration value.
type PropertyError struct {
	Element  string
	Property string
	Value    any
	Err      error
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("set %s.%s=%v: %v", e.Element, e.Property, e.Value, e.Err)
}

func (e *PropertyError) Unwrap() error { return e.Err }

// LinkError reports a static or dynamic link rejected by the engine or by
// capability negotiation.
type LinkError struct {
	Src string
	Dst string
	Err error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link %s → %s: %v", e.Src, e.Dst, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

// FormatMismatchError reports a delivered frame whose geometry disagrees
// with the negotiated capability.
type FormatMismatchError struct {
	Want     caps.Capability
	Got      caps.Capability
	Len      int
	Expected int
}

func (e *FormatMismatchError) Error() string {
	if e.Expected > 0 && e.Len != e.Expected {
		return fmt.Sprintf("frame format mismatch: want %s, got %s with %d bytes (expected %d)",
			e.Want, e.Got, e.Len, e.Expected)
	}
	return fmt.Sprintf("frame format mismatch: want %s, got %s", e.Want, e.Got)
}

// PipelineError is a fatal error event raised by the engine.
type PipelineError struct {
	Source   string
	Message  string
	Debug    string
	Category ErrorCategory
}

func (e *PipelineError) Error() string {
	if e.Debug == "" {
		return fmt.Sprintf("%s: %s [%s]", e.Source, e.Message, e.Category)
	}
	return fmt.Sprintf("%s: %s (%s) [%s]", e.Source, e.Message, e.Debug, e.Category)
}

// ErrorCategory classifies engine error events for diagnostics.
type ErrorCategory int

const (
	// ErrCategoryResource indicates the input could not be read.
	ErrCategoryResource ErrorCategory = iota
	// ErrCategoryCodec indicates decode failures or missing decoders.
	ErrCategoryCodec
	// ErrCategoryNegotiation indicates capability negotiation failures.
	ErrCategoryNegotiation
	// ErrCategoryStream indicates data flow failures such as unlinked pads.
	ErrCategoryStream
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryNegotiation:
		return "negotiation"
	case ErrCategoryStream:
		return "stream"
	default:
		return "unknown"
	}
}

var (
	resourceKeywords = []string{
		"could not open",
		"no such file",
		"not found",
		"permission denied",
		"resource",
		"could not read",
	}
	negotiationKeywords = []string{
		"not-negotiated",
		"not negotiated",
		"negotiation",
		"caps",
	}
	codecKeywords = []string{
		"codec",
		"decode",
		"no decoder",
		"missing plugin",
		"corrupt",
		"h264",
		"h265",
		"type not found",
	}
	streamKeywords = []string{
		"not-linked",
		"not linked",
		"internal data stream error",
		"streaming stopped",
	}
)

// ClassifyError categorizes an engine error event from its message and
// debug detail. Negotiation is checked before stream so that
// "streaming stopped, reason not-negotiated" lands in negotiation.
func ClassifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	switch {
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, streamKeywords):
		return ErrCategoryStream
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
