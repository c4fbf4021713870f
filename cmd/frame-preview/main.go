// Command frame-preview renders the first video frame of a media file, or
// every frame, as truecolor glyphs on the terminal.
//
//	frame-preview [--mode single|continuous] [--width N] VIDEO
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/gstengine"
)

// Version information
var version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(filepath.Base(os.Args[0]), os.Stdout, os.Stderr, func() engine.Engine {
		return gstengine.New()
	})

	err := app.RunContext(ctx, os.Args)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		return 1
	default:
		fmt.Fprintf(os.Stderr, "frame-preview: %s\n", diagnostic(err))
		return 1
	}
}

// diagnostic flattens err onto one line; joined errors become "a; b".
func diagnostic(err error) string {
	lines := strings.Split(err.Error(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, "frame-preview: ")
	}
	return strings.Join(lines, "; ")
}
