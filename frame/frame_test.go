package frame

import (
	"testing"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/gpu/simgpu"
)

// blockTime is how long a call must stay blocked to be
// considered blocked.
const blockTime = 50 * time.Millisecond

// rig is a renderer driving a simulated device.
type rig struct {
	t *testing.T
	d *simgpu.Device
	r *Renderer
}

func newRig(t *testing.T, opts simgpu.Options, config func(c *Config)) *rig {
	t.Helper()
	d := simgpu.New(opts)
	cfg := DefaultConfig()
	if config != nil {
		config(&cfg)
	}
	r, err := New(d, d, cfg)
	if err != nil {
		d.Close()
		t.Fatalf("New:\nhave %v\nwant nil", err)
	}
	t.Cleanup(func() {
		r.Destroy()
		d.Close()
	})
	return &rig{t: t, d: d, r: r}
}

// begin calls BeginFrame, expecting Ok.
func (g *rig) begin() int {
	g.t.Helper()
	img, st, err := g.r.BeginFrame()
	if st != Ok || err != nil {
		g.t.Fatalf("r.BeginFrame:\nhave %v, %v\nwant Ok, nil", st, err)
	}
	return img
}

// end calls EndFrame, expecting Ok.
func (g *rig) end(img int) {
	g.t.Helper()
	if st, err := g.r.EndFrame(img); st != Ok || err != nil {
		g.t.Fatalf("r.EndFrame(%d):\nhave %v, %v\nwant Ok, nil", img, st, err)
	}
}

// frame runs a complete frame, calling BeginFrame again as long
// as it reports RetryAfterRecreate.
func (g *rig) frame() int {
	g.t.Helper()
	for i := 0; i < 10; i++ {
		img, st, err := g.r.BeginFrame()
		switch st {
		case Ok:
			g.end(img)
			return img
		case RetryAfterRecreate:
			continue
		}
		g.t.Fatalf("r.BeginFrame:\nhave %v, %v\nwant Ok or RetryAfterRecreate", st, err)
	}
	g.t.Fatal("r.BeginFrame: no frame after 10 attempts")
	return -1
}

func (g *rig) checkViolations() {
	g.t.Helper()
	if err := g.d.WaitIdle(); err != nil {
		g.t.Fatalf("d.WaitIdle:\nhave %v\nwant nil", err)
	}
	if v := g.d.Violations(); len(v) != 0 {
		g.t.Fatalf("d.Violations:\nhave %q\nwant none", v)
	}
}

type beginResult struct {
	img int
	st  Status
	err error
}

// beginAsync calls BeginFrame in a new goroutine.
func (g *rig) beginAsync() <-chan beginResult {
	ch := make(chan beginResult, 1)
	go func() {
		img, st, err := g.r.BeginFrame()
		ch <- beginResult{img, st, err}
	}()
	return ch
}

// hold holds the next submission until the test ends or the
// returned function is called.
func (g *rig) hold() func() {
	release := g.d.HoldNext()
	g.t.Cleanup(release)
	return release
}

func TestFrames(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	if s := g.r.State(); s != Stable {
		t.Fatalf("r.State:\nhave %v\nwant Stable", s)
	}
	if n := g.r.ImageCount(); n != 3 {
		t.Fatalf("r.ImageCount:\nhave %d\nwant 3", n)
	}
	if e := g.r.Extent(); e != (gpu.Extent{Width: 800, Height: 600}) {
		t.Fatalf("r.Extent:\nhave %v\nwant 800x600", e)
	}
	var imgs []int
	for i := 0; i < 8; i++ {
		imgs = append(imgs, g.frame())
	}
	for i, img := range imgs {
		if img != i%3 {
			t.Fatalf("images:\nhave %v\nwant [0 1 2 0 1 2 0 1]", imgs)
		}
	}
	st := g.r.Stats()
	if st.Frames != 8 || st.Dropped != 0 || st.Retries != 0 || st.Recreations != 1 {
		t.Fatalf("r.Stats:\nhave %+v\nwant 8 frames, 1 recreation", st)
	}
	if st.FrameTime <= 0 || st.FPS <= 0 {
		t.Fatalf("r.Stats: FrameTime/FPS\nhave %v/%v\nwant positive", st.FrameTime, st.FPS)
	}
	g.checkViolations()
}

// A frame slot comes around again as soon as its fence
// signals, which may be before the presentation of its previous
// frame consumed the render-complete semaphore. Queue order must
// keep the semaphore from being signaled twice.
func TestSteadyState(t *testing.T) {
	for _, n := range [...]int{2, 3} {
		for _, opts := range [...]simgpu.Options{{}, {EagerRelease: true}, {ReuseLatest: true}} {
			g := newRig(t, opts, func(c *Config) { c.FramesInFlight = n })
			for i := 0; i < 200; i++ {
				g.frame()
			}
			idle := make(chan error, 1)
			go func() { idle <- g.d.WaitIdle() }()
			select {
			case err := <-idle:
				if err != nil {
					t.Fatalf("N=%d %+v: d.WaitIdle:\nhave %v\nwant nil", n, opts, err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("N=%d %+v: d.WaitIdle did not return", n, opts)
			}
			if v := g.d.Violations(); len(v) != 0 {
				t.Fatalf("N=%d %+v: d.Violations:\nhave %q\nwant none", n, opts, v)
			}
			if st := g.d.Stats(); st.Presented != st.Presents {
				t.Fatalf("N=%d %+v: d.Stats: Presented/Presents\nhave %d/%d\nwant equal", n, opts, st.Presented, st.Presents)
			}
		}
	}
}

func TestConfig(t *testing.T) {
	for _, x := range [...]struct {
		name string
		mod  func(c *Config)
		ok   bool
	}{
		{"default", func(*Config) {}, true},
		{"triple", func(c *Config) { c.FramesInFlight = 3 }, true},
		{"no depth", func(c *Config) { c.DepthFormat = gpu.FormatUndefined }, true},
		{"zero slots", func(c *Config) { c.FramesInFlight = 0 }, false},
		{"four slots", func(c *Config) { c.FramesInFlight = 4 }, false},
		{"depth as color", func(c *Config) { c.ColorFormat = gpu.FormatD32Float }, false},
		{"color as depth", func(c *Config) { c.DepthFormat = gpu.FormatBGRA8SRGB }, false},
		{"negative cap", func(c *Config) { c.MaxDeferredRecreates = -1 }, false},
		{"no poll", func(c *Config) { c.PausePoll = 0 }, false},
		{"no sets", func(c *Config) { c.Descriptors.MaxSets = 0 }, false},
	} {
		c := DefaultConfig()
		x.mod(&c)
		if err := c.Validate(); (err == nil) != x.ok {
			t.Fatalf("%s: c.Validate:\nhave %v\nwant ok=%t", x.name, err, x.ok)
		}
	}

	d := simgpu.New(simgpu.Options{})
	defer d.Close()
	if _, err := New(d, d, Config{}); err == nil {
		t.Fatal("New(Config{}):\nhave nil\nwant error")
	}
}

func TestClearColor(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	if have, want := g.r.ClearColor(), [4]float32{0.1, 0.2, 0.3, 1}; have != want {
		t.Fatalf("r.ClearColor:\nhave %v\nwant %v", have, want)
	}
	g.r.SetClearColor(1, 0, 0, 1)
	img := g.begin()
	cb, _ := g.r.CommandBuffer()
	var info gpu.RenderingInfo
	for _, c := range cb.(*simgpu.CmdBuffer).Commands() {
		if c.Kind == simgpu.CmdBeginRendering {
			info = c.Rendering
		}
	}
	if have, want := info.Color.Clear, [4]float32{1, 0, 0, 1}; have != want {
		t.Fatalf("RenderingInfo.Color.Clear:\nhave %v\nwant %v", have, want)
	}
	g.end(img)
}
