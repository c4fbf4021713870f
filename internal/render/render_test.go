package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(width, height int) []byte {
	data := make([]byte, 3*width*height)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestRender_SinglePixel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, []byte{255, 0, 16}, 1, 1))

	assert.Equal(t, "\x1b[38;2;255;0;16m█\x1b[0m\n", buf.String())
}

func TestRender_Geometry(t *testing.T) {
	const width, height = 160, 90

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, gradient(width, height), width, height))

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, height)
	for i, line := range lines {
		assert.Equal(t, width, strings.Count(line, Glyph), "row %d", i)
		assert.Equal(t, width, strings.Count(line, "\x1b[38;2;"), "row %d", i)
		assert.Equal(t, width, strings.Count(line, reset), "row %d", i)
	}
}

func TestRender_Deterministic(t *testing.T) {
	data := gradient(32, 18)

	var a, b bytes.Buffer
	require.NoError(t, Render(&a, data, 32, 18))
	require.NoError(t, Render(&b, append([]byte(nil), data...), 32, 18))

	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestRender_InvalidInput(t *testing.T) {
	tests := []struct {
		name          string
		data          []byte
		width, height int
	}{
		{"zero width", make([]byte, 3), 0, 1},
		{"negative height", make([]byte, 3), 1, -1},
		{"short buffer", make([]byte, 3*4*4-1), 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Error(t, Render(&buf, tt.data, tt.width, tt.height))
			assert.Zero(t, buf.Len(), "nothing may be written for invalid input")
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRender_WriteError(t *testing.T) {
	err := Render(failingWriter{}, gradient(4, 4), 4, 4)
	assert.EqualError(t, err, "broken pipe")
}

type frame struct {
	w, h, stride int
	data         []byte
}

func (f frame) Geometry() (int, int, int) { return f.w, f.h, f.stride }
func (f frame) Pixels() []byte            { return f.data }

func TestRenderFrame(t *testing.T) {
	var direct, viaFrame bytes.Buffer
	data := gradient(8, 2)
	require.NoError(t, Render(&direct, data, 8, 2))
	require.NoError(t, RenderFrame(&viaFrame, frame{8, 2, 24, data}))
	assert.Equal(t, direct.String(), viaFrame.String())

	assert.Error(t, RenderFrame(&viaFrame, frame{8, 2, 32, data}), "padded rows are not supported")
}
