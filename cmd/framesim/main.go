// Command framesim runs the frame pipeline on the simulated GPU
// against a scripted headless window: a resize storm, a
// minimize/restore cycle and a stalled submission, then quits and
// reports frame statistics and any synchronization violations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/boulderengine/frames/frame"
	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/gpu/simgpu"
	"github.com/boulderengine/frames/window"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"
)

type options struct {
	inFlight   int
	exec       time.Duration
	storm      int
	stormEvery time.Duration
	minimize   time.Duration
	stall      time.Duration
	settle     time.Duration
	eager      bool
	suboptimal bool
	verbose    bool
}

func parseFlags() options {
	var o options
	flag.IntVar(&o.inFlight, "inflight", 2, "frames in flight (1-3)")
	flag.DurationVar(&o.exec, "exec", 2*time.Millisecond, "simulated execution time of a submission")
	flag.IntVar(&o.storm, "storm", 20, "number of resizes in the resize storm")
	flag.DurationVar(&o.stormEvery, "storm-every", time.Millisecond, "interval between storm resizes")
	flag.DurationVar(&o.minimize, "minimize", 100*time.Millisecond, "how long the window stays minimized")
	flag.DurationVar(&o.stall, "stall", 50*time.Millisecond, "how long one submission is stalled")
	flag.DurationVar(&o.settle, "settle", 100*time.Millisecond, "time between scenario phases")
	flag.BoolVar(&o.eager, "eager", false, "release presented images before their presentation completes")
	flag.BoolVar(&o.suboptimal, "suboptimal", false, "acquire reports suboptimal instead of out of date on resize")
	flag.BoolVar(&o.verbose, "v", false, "log debug output")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	frame.SetLogger(logger)

	if err := run(context.Background(), o, logger); err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(ctx context.Context, o options, logger *slog.Logger) error {
	size := gpu.Extent{Width: 800, Height: 600}
	dev := simgpu.New(simgpu.Options{
		Surface:           size,
		EagerRelease:      o.eager,
		SuboptimalAcquire: o.suboptimal,
		ExecTime:          o.exec,
		Features:          gpu.Features{DynamicRendering: true, DepthAttachment: true},
		Logger:            logger.With("device", "sim"),
	})
	defer dev.Close()
	win := window.NewHeadless(size.Width, size.Height)

	cfg := frame.DefaultConfig()
	cfg.FramesInFlight = o.inFlight
	r, err := frame.New(dev, win, cfg)
	if err != nil {
		return err
	}
	defer r.Destroy()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Run(ctx, win, frame.ProducerFunc(spin))
	})
	g.Go(func() error {
		return script(ctx, o, dev, win, logger)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	st := r.Stats()
	fmt.Printf("frames %d  dropped %d  retries %d  recreations %d  deferred %d  fps %.1f\n",
		st.Frames, st.Dropped, st.Retries, st.Recreations, st.DeferredPasses, st.FPS)
	ds := dev.Stats()
	fmt.Printf("swapchains %d/%d  submits %d  presents %d  wait-idles %d\n",
		ds.SwapchainsCreated, ds.SwapchainsDestroyed, ds.Submits, ds.Presents, ds.WaitIdles)
	if v := dev.Violations(); len(v) > 0 {
		for _, s := range v {
			logger.Error("violation", "what", s)
		}
		return errors.Newf("%d synchronization violations", len(v))
	}
	return nil
}

// spin pushes a rotating transform as a producer would.
func spin(f *frame.Frame) error {
	aspect := float32(f.Extent.Width) / float32(f.Extent.Height)
	angle := float32(f.Image) * mgl32.DegToRad(15)
	mvp := mgl32.Perspective(mgl32.DegToRad(45), aspect, 0.1, 10).
		Mul4(mgl32.LookAtV(mgl32.Vec3{2, 2, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})).
		Mul4(mgl32.HomogRotate3DZ(angle))
	if err := f.SetPushConstants(gpu.ShaderVertex, 0, mvp); err != nil {
		return err
	}
	return f.Draw(3, 1, 0, 0)
}

// script plays the scenario and then quits the window.
func script(ctx context.Context, o options, dev *simgpu.Device, win *window.Headless, logger *slog.Logger) error {
	sleep := func(d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	resize := func(w, h int) {
		dev.SetSurface(gpu.Extent{Width: w, Height: h})
		win.Resize(w, h)
	}

	if err := sleep(o.settle); err != nil {
		return err
	}
	logger.Info("resize storm", "resizes", o.storm)
	for i := 0; i < o.storm; i++ {
		resize(800+10*(i+1), 600+5*(i+1))
		if err := sleep(o.stormEvery); err != nil {
			return err
		}
	}

	if err := sleep(o.settle); err != nil {
		return err
	}
	logger.Info("minimize", "for", o.minimize)
	resize(0, 0)
	if err := sleep(o.minimize); err != nil {
		return err
	}
	resize(1024, 768)

	if err := sleep(o.settle); err != nil {
		return err
	}
	logger.Info("stall", "for", o.stall)
	release := dev.HoldNext()
	err := sleep(o.stall)
	release()
	if err != nil {
		return err
	}

	if err := sleep(o.settle); err != nil {
		return err
	}
	win.Quit()
	return nil
}
