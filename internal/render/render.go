// Package render turns packed RGB frames into ANSI truecolor text.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

const (
	// Glyph is the filled block drawn for every pixel.
	Glyph = "█"

	reset = "\x1b[0m"

	// CursorHome moves the cursor to the top-left corner so successive
	// frames overwrite each other.
	CursorHome = "\x1b[H"
)

// Frame is the geometry and pixel data of one packed RGB image.
type Frame interface {
	Geometry() (width, height, stride int)
	Pixels() []byte
}

// Render writes one frame to w: for every pixel a foreground color escape
// parameterized by its three channels followed by Glyph, and a newline
// after each row. Output depends only on data, width and height.
func Render(w io.Writer, data []byte, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid geometry %dx%d", width, height)
	}
	stride := 3 * width
	if len(data) < stride*height {
		return fmt.Errorf("render: %d bytes cannot hold %dx%d RGB pixels", len(data), width, height)
	}

	bw := bufio.NewWriterSize(w, stride*8)
	var scratch [len("\x1b[38;2;255;255;255m")]byte
	for y := 0; y < height; y++ {
		row := data[y*stride : (y+1)*stride]
		for x := 0; x < stride; x += 3 {
			bw.Write(sgr(scratch[:0], row[x], row[x+1], row[x+2]))
			bw.WriteString(Glyph)
			bw.WriteString(reset)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// RenderFrame renders f.
func RenderFrame(w io.Writer, f Frame) error {
	width, height, stride := f.Geometry()
	if stride != 3*width {
		return fmt.Errorf("render: stride %d is not 3*%d", stride, width)
	}
	return Render(w, f.Pixels(), width, height)
}

// sgr appends ESC[38;2;R;G;Bm to buf.
func sgr(buf []byte, r, g, b byte) []byte {
	buf = append(buf, "\x1b[38;2;"...)
	buf = strconv.AppendUint(buf, uint64(r), 10)
	buf = append(buf, ';')
	buf = strconv.AppendUint(buf, uint64(g), 10)
	buf = append(buf, ';')
	buf = strconv.AppendUint(buf, uint64(b), 10)
	return append(buf, 'm')
}
