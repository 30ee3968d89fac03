// fractal animates a morphing escape-time fractal on the GPU, writing each frame as a PNG and
// optionally previewing it in a window.
//
// Preview controls: WASD or arrows pan, Q/E or the scroll wheel zoom, space pauses, R resets the
// view and Escape closes the window.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/go-logr/logr"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

var (
	flagWidth      = flag.Int("width", 800, "Output width in pixels.")
	flagHeight     = flag.Int("height", 800, "Output height in pixels.")
	flagFrames     = flag.Int("frames", 120, "Number of frames to render. 0 renders until interrupted or the preview window is closed.")
	flagOut        = flag.String("out", "", "Directory PNG frames are written to. Frames are not saved if empty.")
	flagPreview    = flag.Bool("preview", false, "Show the animation in a window.")
	flagIterations = flag.Int("max_iterations", defaultMaxIterations, "Escape-time iteration limit.")
	flagFPS        = flag.Float64("fps", 0, "Animation rate in frames per second. 0 uses a 33ms tick.")
	flagSoftware   = flag.Bool("software", false, "Force the software (fallback) GPU adapter.")
	flagProfile    = flag.Bool("profile", false, "Periodically log frame rate and memory usage.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()
	common.SetLogger(slog.New(logr.ToSlogHandler(klog.Background())))

	if *flagOut != "" {
		if err := os.MkdirAll(*flagOut, 0o755); err != nil {
			klog.Exitf("Failed to create output directory: %+v", err)
		}
	}

	opts := []engine.EngineBuilderOption{
		engine.WithTickRate(*flagFPS),
		engine.WithProfiling(*flagProfile),
		engine.WithRendererOptions(renderer.WithForceSoftwareRenderer(*flagSoftware)),
	}

	v := newView(*flagIterations)
	if *flagPreview {
		win, err := window.NewWindow(window.WithTitle("oxy-compute fractal"), window.WithSize(*flagWidth, *flagHeight))
		if err != nil {
			klog.Exitf("Failed to open preview window: %+v", err)
		}
		win.SetKeyDownCallback(v.handleKey)
		win.SetScrollCallback(v.zoom)
		opts = append(opts, engine.WithWindow(win))
	}

	e, err := engine.NewEngine(opts...)
	if err != nil {
		klog.Exitf("Failed to create engine: %+v", err)
	}
	defer e.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	barMax := *flagFrames
	if barMax <= 0 {
		barMax = -1 // spinner
	}
	bar := progressbar.NewOptions(barMax,
		progressbar.OptionSetDescription("fractal"),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)

	err = e.Animate(ctx, *flagFrames,
		func(int) (*pipeline.ProgramDescriptor, error) {
			return v.program(*flagWidth, *flagHeight)
		},
		func(i int, buf result.TypedBuffer) error {
			v.advance()
			if *flagOut != "" {
				path, err := writeFrame(*flagOut, i, *flagWidth, *flagHeight, buf)
				if err != nil {
					return err
				}
				klog.V(2).Infof("wrote %s", path)
			}
			return bar.Add(1)
		})
	_ = bar.Finish()
	if err != nil && ctx.Err() == nil {
		klog.Exitf("Animation failed: %+v", err)
	}
	klog.Infof("%s", e.Profiler().Summary())
}
