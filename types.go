package framepreview

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/caps"
)

// CaptureMode selects how many frames a Preview renders.
type CaptureMode int

const (
	// ModeSingle renders the first frame of the first video stream.
	ModeSingle CaptureMode = iota
	// ModeContinuous renders every decoded frame.
	ModeContinuous
)

// String returns the flag spelling of the mode.
func (m CaptureMode) String() string {
	switch m {
	case ModeSingle:
		return "single"
	case ModeContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("CaptureMode(%d)", int(m))
	}
}

// ParseCaptureMode parses "single" or "continuous".
func ParseCaptureMode(s string) (CaptureMode, error) {
	switch s {
	case "single":
		return ModeSingle, nil
	case "continuous":
		return ModeContinuous, nil
	default:
		return 0, fmt.Errorf("frame-preview: unknown capture mode %q (want single or continuous)", s)
	}
}

const (
	// DefaultWidth is the rendered width in pixels, one glyph per pixel.
	DefaultWidth = 160

	maxDimension = 8192
)

// Config contains configuration for a preview
type Config struct {
	// Mode selects single-frame or continuous capture
	Mode CaptureMode
	// Width of the rendered frame in pixels (required)
	Width int
	// Height of the rendered frame; 0 keeps the source aspect ratio
	Height int
	// MaxFrames stops a continuous capture after that many frames; 0 means
	// until end of stream
	MaxFrames int
	// ClearBetweenFrames moves the cursor home before each continuous frame
	// so frames overwrite each other
	ClearBetweenFrames bool
}

// DefaultConfig returns a single-frame, 160 pixel wide preview.
func DefaultConfig() Config {
	return Config{Mode: ModeSingle, Width: DefaultWidth}
}

// Validate checks the configuration. Open calls it before touching the
// engine.
func (c Config) Validate() error {
	if c.Mode != ModeSingle && c.Mode != ModeContinuous {
		return fmt.Errorf("frame-preview: invalid capture mode %v", c.Mode)
	}
	if c.Width <= 0 || c.Width > maxDimension {
		return fmt.Errorf("frame-preview: invalid width %d (must be 1-%d)", c.Width, maxDimension)
	}
	if c.Height < 0 || c.Height > maxDimension {
		return fmt.Errorf("frame-preview: invalid height %d (must be 0-%d)", c.Height, maxDimension)
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("frame-preview: invalid max frames %d", c.MaxFrames)
	}
	if c.Mode == ModeSingle && c.MaxFrames > 1 {
		return fmt.Errorf("frame-preview: max frames %d requires continuous mode", c.MaxFrames)
	}
	return nil
}

// target is the capability the sink negotiates.
func (c Config) target() caps.Capability {
	return caps.Video().
		WithFormat(caps.FormatRGB).
		WithSize(c.Width, c.Height).
		WithAspect(1, 1)
}

// CaptureStats describes a finished Run.
type CaptureStats struct {
	// Frames is the number of frames rendered
	Frames int
	// StreamDuration is the media duration reported by the engine, 0 if
	// unknown
	StreamDuration time.Duration
	// MediaSpan is the presentation time between the first and last
	// rendered frame
	MediaSpan time.Duration
	// Elapsed is the wall time spent rendering
	Elapsed time.Duration
	// FPSMean is the mean render rate
	FPSMean float64
	// FPSStdDev is the standard deviation of the instantaneous render rate
	FPSStdDev float64
	// FPSMin is the minimum instantaneous render rate
	FPSMin float64
	// FPSMax is the maximum instantaneous render rate
	FPSMax float64
	// JitterMean is the mean deviation from the expected frame interval
	// (seconds)
	JitterMean float64
	// IsStable is true if the render rate was steady (stddev < 15% of mean
	// AND jitter < 20% of interval)
	IsStable bool
}
