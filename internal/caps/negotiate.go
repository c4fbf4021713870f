package caps

// Boundary identifies which link in the graph is being negotiated. The
// decoder/converter boundary only agrees on media kind; the converter and
// scaler rewrite format and size, so the scaler/sink boundary must agree on
// everything.
type Boundary int

const (
	// BoundaryKind negotiates media kind only (decoder → converter).
	BoundaryKind Boundary = iota
	// BoundaryExact negotiates kind, pixel format and exact dimensions
	// (scaler → sink).
	BoundaryExact
)

func (b Boundary) String() string {
	switch b {
	case BoundaryKind:
		return "kind"
	case BoundaryExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Compatible reports whether every constrained field on either side is
// satisfiable by the other. Wildcards always satisfy.
func Compatible(producer, consumer Capability) bool {
	_, ok := Intersect(producer, consumer)
	return ok
}

// CompatibleAt negotiates producer against consumer at the given boundary.
func CompatibleAt(b Boundary, producer, consumer Capability) bool {
	if b == BoundaryKind {
		return matchKind(producer.kind, consumer.kind)
	}
	return Compatible(producer, consumer)
}

// Intersect returns the capability satisfying both sides, constrained
// wherever either side is. ok is false when a field conflicts.
func Intersect(a, b Capability) (out Capability, ok bool) {
	if !matchKind(a.kind, b.kind) {
		return Capability{}, false
	}
	out.kind = pickString(a.kind, b.kind)

	if a.format != "" && b.format != "" && a.format != b.format {
		return Capability{}, false
	}
	out.format = pickString(a.format, b.format)

	if w, ok := pickInt(a.width, b.width); ok {
		out.width = w
	} else {
		return Capability{}, false
	}
	if h, ok := pickInt(a.height, b.height); ok {
		out.height = h
	} else {
		return Capability{}, false
	}

	switch {
	case a.aspect.IsZero():
		out.aspect = b.aspect
	case b.aspect.IsZero(), a.aspect.equal(b.aspect):
		out.aspect = a.aspect
	default:
		return Capability{}, false
	}
	return out, true
}

func matchKind(a, b MediaKind) bool {
	return a == KindAny || b == KindAny || a == b
}

func pickString[T ~string](a, b T) T {
	if a != "" {
		return a
	}
	return b
}

func pickInt(a, b int) (int, bool) {
	switch {
	case a == 0:
		return b, true
	case b == 0, a == b:
		return a, true
	default:
		return 0, false
	}
}
