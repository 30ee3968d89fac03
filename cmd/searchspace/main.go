// searchspace locates a small "moving" image inside a larger "fixed" image. Every offset of the
// moving image is scored on the GPU by the joint grey-level entropy of the overlapping pixels and
// the best offsets are printed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine"
	"github.com/Carmen-Shannon/oxy-compute/engine/loader"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

var (
	flagFixed    = flag.String("fixed", "", "URL or path of the fixed image (the haystack).")
	flagMoving   = flag.String("moving", "", "URL or path of the moving image (the needle).")
	flagTop      = flag.Int("top", 5, "Number of best offsets to print.")
	flagTimeout  = flag.Duration("timeout", 30*time.Second, "Timeout for downloading each image.")
	flagSettle   = flag.Duration("settle", 300*time.Millisecond, "Delay after decoding before image sizes are used.")
	flagSoftware = flag.Bool("software", false, "Force the software (fallback) GPU adapter.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()
	common.SetLogger(slog.New(logr.ToSlogHandler(klog.Background())))

	if *flagFixed == "" || *flagMoving == "" {
		klog.Exitf("Both -fixed and -moving are required. See 'searchspace -help'.")
	}
	ctx := context.Background()

	l := loader.NewLoader(loader.WithTimeout(*flagTimeout), loader.WithSettleDelay(*flagSettle))
	defer l.Release()
	fixedImg := l.Load(ctx, *flagFixed)
	movingImg := l.Load(ctx, *flagMoving)

	var fixed, moving size
	var err error
	if fixed.W, fixed.H, err = fixedImg.Size(ctx); err != nil {
		klog.Exitf("Failed to load fixed image: %+v", err)
	}
	if moving.W, moving.H, err = movingImg.Size(ctx); err != nil {
		klog.Exitf("Failed to load moving image: %+v", err)
	}
	sp, err := searchSpace(fixed, moving)
	if err != nil {
		klog.Exitf("%v", err)
	}
	desc, err := searchProgram(sp, moving, fixedImg, movingImg)
	if err != nil {
		klog.Exitf("Invalid program: %+v", err)
	}

	e, err := engine.NewEngine(engine.WithRendererOptions(renderer.WithForceSoftwareRenderer(*flagSoftware)))
	if err != nil {
		klog.Exitf("Failed to create engine: %+v", err)
	}
	defer e.Release()

	read, err := e.Renderer().Execute(ctx, desc)
	if err != nil {
		klog.Exitf("Search failed: %+v", err)
	}
	readStart := time.Now()
	buf, err := read()
	if err != nil {
		klog.Exitf("Failed to read results: %+v", err)
	}
	m := newMetrics(fixed, moving, sp, e.Profiler().Last(), time.Since(readStart))
	klog.V(1).Infof("search space %dx%d scored in %s", sp.W, sp.H, m.Time)

	best := common.Rank(sp.W, buf.Float32())
	fmt.Print(report(newPrinter(), m, best, *flagTop))
}
