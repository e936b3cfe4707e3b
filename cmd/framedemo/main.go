// Command framedemo opens an SDL2 window and drives the frame
// pipeline on Vulkan. The clear color cycles through hues; the
// left mouse button freezes it, Escape quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/boulderengine/frames/frame"
	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/gpu/vkng"
	"github.com/boulderengine/frames/window"
	"github.com/boulderengine/frames/window/sdlwin"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"
)

func init() {
	// SDL must be driven from the main thread.
	runtime.LockOSThread()
}

var presentModes = map[string]gpu.PresentMode{
	"fifo":      gpu.PresentFIFO,
	"mailbox":   gpu.PresentMailbox,
	"immediate": gpu.PresentImmediate,
}

func main() {
	var (
		inFlight   = flag.Int("inflight", 2, "frames in flight (1-3)")
		present    = flag.String("present", "immediate", "preferred present mode: fifo, mailbox or immediate")
		depth      = flag.Bool("depth", true, "attach a depth buffer")
		validation = flag.Bool("validation", false, "enable the Vulkan validation layer")
		verbose    = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	frame.SetLogger(logger)

	cfg := frame.DefaultConfig()
	cfg.FramesInFlight = *inFlight
	mode, ok := presentModes[strings.ToLower(*present)]
	if !ok {
		log.Fatalf("unknown present mode %q", *present)
	}
	cfg.PresentMode = mode
	if !*depth {
		cfg.DepthFormat = gpu.FormatUndefined
	}

	opts := vkng.DefaultOptions()
	opts.AppName = "framedemo"
	opts.Validation = *validation
	opts.Logger = logger.With("device", "vulkan")

	if err := run(cfg, opts, logger); err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run(cfg frame.Config, opts vkng.Options, logger *slog.Logger) error {
	win, err := sdlwin.New("framedemo", 800, 600)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := vkng.Open(win, opts)
	if err != nil {
		return err
	}
	defer dev.Close()

	r, err := frame.New(dev, win, cfg)
	if err != nil {
		return err
	}
	defer r.Destroy()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &demo{r: r, win: win, cancel: cancel, start: hrtime.Now()}
	err = r.Run(ctx, win, d)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	st := r.Stats()
	logger.Info("done", "frames", st.Frames, "dropped", st.Dropped, "recreations", st.Recreations, "fps", st.FPS)
	return err
}

type demo struct {
	r      *frame.Renderer
	win    *sdlwin.Window
	cancel context.CancelFunc
	start  time.Duration
	frozen bool
	hue    float64
	frames int
}

func (d *demo) Draw(f *frame.Frame) error {
	if f.Input.KeyDown(window.Key(sdl.SCANCODE_ESCAPE)) {
		d.cancel()
		return nil
	}
	if f.Input.Clicked(window.ButtonLeft) {
		d.frozen = !d.frozen
	}

	t := (hrtime.Now() - d.start).Seconds()
	if !d.frozen {
		d.hue = math.Mod(t*0.1, 1)
	}
	c := hsv(float32(d.hue), 0.6, 0.8)
	d.r.SetClearColor(c[0], c[1], c[2], 1)

	x, y := f.Input.MousePos()
	pc := mgl32.Vec4{float32(t), float32(x), float32(y), float32(f.Image)}
	if err := f.SetPushConstants(gpu.ShaderVertex|gpu.ShaderFragment, 0, pc); err != nil {
		return err
	}

	d.frames++
	if d.frames%120 == 0 {
		st := d.r.Stats()
		d.win.SetTitle(fmt.Sprintf("framedemo  %v  %.0f fps  %.2f ms", f.Extent, st.FPS, float64(st.FrameTime.Microseconds())/1000))
	}
	return nil
}

// hsv converts a color to RGB. All components are in [0, 1].
func hsv(h, s, v float32) mgl32.Vec3 {
	k := func(n float32) float32 {
		x := float32(math.Mod(float64(n+h*6), 6))
		return v - v*s*mgl32.Clamp(min(x, 4-x), 0, 1)
	}
	return mgl32.Vec3{k(5), k(3), k(1)}
}
