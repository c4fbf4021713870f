package caps

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse reads the first structure of a caps string as printed by
// GStreamer, e.g.
//
//	video/x-raw, format=(string)RGB, width=(int)160, height=(int)90, pixel-aspect-ratio=(fraction)1/1
//
// Fields other than format, width, height and pixel-aspect-ratio are
// ignored, as are ranges and lists, which leave the field unconstrained.
func Parse(s string) (Capability, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "ANY" {
		return Any(), nil
	}
	if s == "EMPTY" || s == "NONE" {
		return Capability{}, fmt.Errorf("caps: %q has no structure", s)
	}
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}

	fields := splitFields(s)
	name := strings.TrimSpace(fields[0])
	// strip caps features: video/x-raw(memory:SystemMemory)
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return Capability{}, fmt.Errorf("caps: %q has no media type", s)
	}

	c := Capability{kind: KindFromMediaType(name)}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return Capability{}, fmt.Errorf("caps: malformed field %q", strings.TrimSpace(f))
		}
		key = strings.TrimSpace(key)
		value = stripType(strings.TrimSpace(value))
		if strings.ContainsAny(value, "[{<") {
			continue
		}

		switch key {
		case "format":
			c.format = strings.Trim(value, `"`)
		case "width", "height":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return Capability{}, fmt.Errorf("caps: bad %s %q", key, value)
			}
			if key == "width" {
				c.width = n
			} else {
				c.height = n
			}
		case "pixel-aspect-ratio":
			num, den, ok := strings.Cut(value, "/")
			if !ok {
				return Capability{}, fmt.Errorf("caps: bad pixel-aspect-ratio %q", value)
			}
			n, err1 := strconv.Atoi(num)
			d, err2 := strconv.Atoi(den)
			if err1 != nil || err2 != nil {
				return Capability{}, fmt.Errorf("caps: bad pixel-aspect-ratio %q", value)
			}
			c.aspect = Ratio{Num: n, Den: d}
		}
	}
	return c, nil
}

// splitFields splits on commas outside ranges, lists and quotes.
func splitFields(s string) []string {
	var (
		out   []string
		depth int
		quote bool
		start int
	)
	for i, r := range s {
		switch {
		case r == '"':
			quote = !quote
		case quote:
		case r == '[' || r == '{' || r == '<':
			depth++
		case r == ']' || r == '}' || r == '>':
			depth--
		case r == ',' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

// stripType drops a "(type)" prefix such as "(int)" or "(string)".
func stripType(v string) string {
	if strings.HasPrefix(v, "(") {
		if i := strings.IndexByte(v, ')'); i >= 0 {
			return strings.TrimSpace(v[i+1:])
		}
	}
	return v
}
