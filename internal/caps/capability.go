// Package caps describes media capabilities and negotiates them between
// producing and consuming stages of a decode graph.
package caps

import (
	"fmt"
	"strings"
)

// MediaKind is the coarse media family of a stream.
type MediaKind string

const (
	// KindAny leaves the media kind unconstrained.
	KindAny MediaKind = ""
	// KindVideo is raw or encoded video.
	KindVideo MediaKind = "video"
	// KindAudio is raw or encoded audio.
	KindAudio MediaKind = "audio"
	// KindOther covers subtitles, metadata and anything else.
	KindOther MediaKind = "other"
)

// FormatRGB is packed 24-bit RGB, three bytes per pixel.
const FormatRGB = "RGB"

// KindFromMediaType maps a media type name such as "video/x-raw" or
// "audio/mpeg" to its MediaKind.
func KindFromMediaType(name string) MediaKind {
	switch {
	case strings.HasPrefix(name, "video/"), strings.HasPrefix(name, "image/"):
		return KindVideo
	case strings.HasPrefix(name, "audio/"):
		return KindAudio
	case name == "" || name == "ANY":
		return KindAny
	default:
		return KindOther
	}
}

// Ratio is a fraction such as a pixel aspect ratio. The zero value is
// unconstrained.
type Ratio struct {
	Num int
	Den int
}

// IsZero reports whether the ratio is unconstrained.
func (r Ratio) IsZero() bool { return r.Num == 0 || r.Den == 0 }

func (r Ratio) equal(o Ratio) bool {
	// 2/2 and 1/1 describe the same aspect
	return r.Num*o.Den == o.Num*r.Den
}

func (r Ratio) String() string { return fmt.Sprintf("%d/%d", r.Num, r.Den) }

// Capability is an immutable constraint set on a pad. Every zero-valued
// field is a wildcard. Use the With* methods to derive constrained copies.
type Capability struct {
	kind   MediaKind
	format string
	width  int
	height int
	aspect Ratio
}

// Any returns the fully unconstrained capability.
func Any() Capability { return Capability{} }

// Of returns a capability constrained to kind only.
func Of(kind MediaKind) Capability { return Capability{kind: kind} }

// Video returns a capability constrained to the video kind.
func Video() Capability { return Of(KindVideo) }

// WithFormat returns a copy constrained to the given pixel format.
func (c Capability) WithFormat(format string) Capability {
	c.format = format
	return c
}

// WithSize returns a copy constrained to width x height. Zero leaves a
// dimension unconstrained.
func (c Capability) WithSize(width, height int) Capability {
	c.width = width
	c.height = height
	return c
}

// WithAspect returns a copy constrained to the given pixel aspect ratio.
func (c Capability) WithAspect(num, den int) Capability {
	c.aspect = Ratio{Num: num, Den: den}
	return c
}

func (c Capability) Kind() MediaKind { return c.kind }
func (c Capability) Format() string  { return c.format }
func (c Capability) Width() int      { return c.width }
func (c Capability) Height() int     { return c.height }
func (c Capability) Aspect() Ratio   { return c.aspect }

// IsAny reports whether no field is constrained.
func (c Capability) IsAny() bool { return c == Capability{} }

// Fixed reports whether format, width and height are all constrained, which
// is what a delivered frame buffer must carry.
func (c Capability) Fixed() bool {
	return c.format != "" && c.width > 0 && c.height > 0
}

// String renders the capability in GStreamer caps syntax, e.g.
// "video/x-raw,format=RGB,width=160,pixel-aspect-ratio=1/1".
func (c Capability) String() string {
	var b strings.Builder
	switch c.kind {
	case KindVideo:
		b.WriteString("video/x-raw")
	case KindAudio:
		b.WriteString("audio/x-raw")
	case KindAny:
		if c.IsAny() {
			return "ANY"
		}
		b.WriteString("video/x-raw")
	default:
		b.WriteString("application/x-" + string(c.kind))
	}
	if c.format != "" {
		fmt.Fprintf(&b, ",format=%s", c.format)
	}
	if c.width > 0 {
		fmt.Fprintf(&b, ",width=%d", c.width)
	}
	if c.height > 0 {
		fmt.Fprintf(&b, ",height=%d", c.height)
	}
	if !c.aspect.IsZero() {
		fmt.Fprintf(&b, ",pixel-aspect-ratio=%s", c.aspect)
	}
	return b.String()
}
