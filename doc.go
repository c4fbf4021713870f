// Package framepreview extracts video frames from a media file and renders
// them as ANSI truecolor text.
//
// The decode graph is assembled at runtime: a file source feeds a decoder
// whose output streams are only known once the container has been
// inspected. The first video stream the decoder announces is linked to a
// converter and scaler that deliver packed RGB frames at the requested
// width to a sink.
//
// # Quick Start
//
//	eng := gstengine.New()
//	if err := eng.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Finalize()
//
//	p, err := framepreview.Open(eng, "clip.mp4", framepreview.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	if err := p.Run(ctx, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// # Capture Modes
//
//   - ModeSingle (default): primes the graph and renders the frame the sink
//     prerolls, without playing through the timeline
//   - ModeContinuous: plays the graph and renders every decoded frame until
//     end of stream, cancellation or Config.MaxFrames
//
// # Frame Format
//
// Frames are packed RGB (RGBRGB...), Width × Height × 3 bytes, no row
// padding. Width defaults to 160 pixels; Height follows the source aspect
// ratio unless set. Pixels are square (pixel-aspect-ratio 1/1).
//
// # Error Handling
//
// Nothing is retried. A fatal engine error stops the graph and Run returns
// a *PipelineError naming the failing element. Construction failures
// surface from Open as *ElementCreationError or *PropertyError before any
// frame is pulled. ErrNoFrameAvailable means the graph stopped before a
// frame reached the sink, e.g. a container without video.
package framepreview
