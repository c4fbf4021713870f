package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	framepreview "github.com/e7canasta/orion-care-sensor/modules/frame-preview"
	"github.com/e7canasta/orion-care-sensor/modules/frame-preview/internal/engine"
)

// errUsage is returned after usage has been printed.
var errUsage = errors.New("usage")

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

type runner struct {
	stdout    io.Writer
	stderr    io.Writer
	newEngine func() engine.Engine
}

func newApp(name string, stdout, stderr io.Writer, newEngine func() engine.Engine) *cli.App {
	r := &runner{stdout: stdout, stderr: stderr, newEngine: newEngine}

	return &cli.App{
		Name:            name,
		Usage:           "render video frames as colored glyphs on the terminal",
		ArgsUsage:       "VIDEO",
		Version:         version,
		Writer:          stdout,
		ErrWriter:       stderr,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mode",
				Value: framepreview.ModeSingle.String(),
				Usage: "capture mode: single, continuous",
			},
			&cli.IntFlag{
				Name:  "width",
				Value: framepreview.DefaultWidth,
				Usage: "rendered width in pixels (0 = terminal width)",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "rendered height in pixels (0 = keep aspect ratio)",
			},
			&cli.IntFlag{
				Name:  "max-frames",
				Usage: "stop a continuous capture after N frames (0 = until end of stream)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "log level: debug, info, warn, error",
			},
			&cli.BoolFlag{
				Name:  "dump-lifecycle",
				Usage: "print the preview lifecycle as graphviz and exit",
			},
		},
		Action: r.run,
	}
}

func (r *runner) run(c *cli.Context) error {
	if c.Bool("dump-lifecycle") {
		fmt.Fprintln(r.stdout, framepreview.LifecycleGraph())
		return nil
	}

	if c.NArg() == 0 {
		fmt.Fprintf(r.stdout, "%s: Please provide a video as argument\n", c.App.Name)
		_ = cli.ShowAppHelp(c)
		return errUsage
	}
	path := c.Args().First()

	if err := r.setupLogging(c.String("log-level")); err != nil {
		return err
	}

	cfg, err := r.config(c)
	if err != nil {
		return err
	}

	eng := r.newEngine()
	if err := eng.Initialize(); err != nil {
		return fmt.Errorf("initialize media engine: %w", err)
	}
	defer eng.Finalize()

	p, err := framepreview.Open(eng, path, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Run(c.Context, r.stdout); err != nil {
		return err
	}

	s := p.Stats()
	slog.Info("frame-preview: done",
		"path", path,
		"frames", s.Frames,
		"stream_duration", s.StreamDuration,
		"elapsed", s.Elapsed,
	)
	return nil
}

func (r *runner) setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q (must be debug, info, warn or error)", level)
	}
	logger := slog.New(slog.NewTextHandler(r.stderr, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return nil
}

// config maps flags onto a framepreview.Config. Validation is left to Open.
func (r *runner) config(c *cli.Context) (framepreview.Config, error) {
	mode, err := framepreview.ParseCaptureMode(c.String("mode"))
	if err != nil {
		return framepreview.Config{}, err
	}

	cfg := framepreview.DefaultConfig()
	cfg.Mode = mode
	cfg.Width = c.Int("width")
	cfg.Height = c.Int("height")
	cfg.MaxFrames = c.Int("max-frames")

	tty := r.isTerminal()
	if cfg.Width == 0 {
		cfg.Width = r.terminalWidth(tty)
	}
	// cursor control only makes sense on a terminal
	cfg.ClearBetweenFrames = mode == framepreview.ModeContinuous && tty

	slog.Debug("frame-preview: configuration",
		"mode", cfg.Mode.String(),
		"width", cfg.Width,
		"height", cfg.Height,
		"max_frames", cfg.MaxFrames,
		"tty", tty,
	)
	return cfg, nil
}

func (r *runner) isTerminal() bool {
	f, ok := r.stdout.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *runner) terminalWidth(tty bool) int {
	if !tty {
		return framepreview.DefaultWidth
	}
	f := r.stdout.(fdWriter)
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		slog.Debug("frame-preview: terminal size unavailable, using default width", "error", err)
		return framepreview.DefaultWidth
	}
	return w
}
