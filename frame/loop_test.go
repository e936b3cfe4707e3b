package frame

import (
	"context"
	"testing"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/gpu/simgpu"
	"github.com/boulderengine/frames/window"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

func TestRun(t *testing.T) {
	g := newRig(t, simgpu.Options{}, func(c *Config) { c.PausePoll = time.Millisecond })
	win := window.NewHeadless(800, 600)
	win.Send(window.Event{Kind: window.KeyDown, Key: 4})

	var (
		frames   int
		sawKey   bool
		restored = make(chan struct{})
	)
	draw := ProducerFunc(func(f *Frame) error {
		frames++
		if frames == 1 {
			sawKey = f.Input.KeyDown(4)
		}
		if err := f.SetPushConstants(gpu.ShaderVertex|gpu.ShaderFragment, 0, mgl32.Vec4{1, 0, 0, 1}); err != nil {
			return err
		}
		if err := f.Draw(3, 1, 0, 0); err != nil {
			return err
		}
		switch frames {
		case 3:
			g.d.SetSurface(gpu.Extent{})
			win.Resize(0, 0)
			time.AfterFunc(20*time.Millisecond, func() {
				g.d.SetSurface(gpu.Extent{Width: 1024, Height: 768})
				win.Resize(1024, 768)
				close(restored)
			})
		case 6:
			return errors.New("producer failure")
		case 10:
			win.Quit()
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.r.Run(ctx, win, draw); err != nil {
		t.Fatalf("r.Run:\nhave %v\nwant nil", err)
	}
	<-restored
	if frames != 10 {
		t.Fatalf("frames drawn:\nhave %d\nwant 10", frames)
	}
	if !sawKey {
		t.Fatal("f.Input.KeyDown(4) on first frame:\nhave false\nwant true")
	}
	if e := g.r.Extent(); e != (gpu.Extent{Width: 1024, Height: 768}) {
		t.Fatalf("r.Extent:\nhave %v\nwant 1024x768", e)
	}
	g.checkViolations()
}

func TestRunManualRecreate(t *testing.T) {
	g := newRig(t, simgpu.Options{}, func(c *Config) {
		c.AutoRecreate = false
		c.PausePoll = time.Millisecond
	})
	win := window.NewHeadless(800, 600)
	frames := 0
	draw := ProducerFunc(func(*Frame) error {
		switch frames++; frames {
		case 2:
			g.d.SetSurface(gpu.Extent{Width: 640, Height: 480})
			win.Resize(640, 480)
		case 5:
			win.Quit()
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.r.Run(ctx, win, draw); err != nil {
		t.Fatalf("r.Run:\nhave %v\nwant nil", err)
	}
	if frames != 5 {
		t.Fatalf("frames drawn:\nhave %d\nwant 5", frames)
	}
	if e := g.r.Extent(); e != (gpu.Extent{Width: 640, Height: 480}) {
		t.Fatalf("r.Extent:\nhave %v\nwant 640x480", e)
	}
	st := g.r.Stats()
	if st.Recreations != 2 || st.Retries > 5 {
		t.Fatalf("r.Stats: Recreations/Retries\nhave %d/%d\nwant 2/at most 5", st.Recreations, st.Retries)
	}
	g.checkViolations()
}

func TestRunCanceled(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	win := window.NewHeadless(0, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.r.Run(ctx, win, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("r.Run (minimized):\nhave %v\nwant %v", err, context.DeadlineExceeded)
	}
	if n := g.r.Stats().Frames; n != 0 {
		t.Fatalf("frames while minimized:\nhave %d\nwant 0", n)
	}
}

func TestRunDeviceLost(t *testing.T) {
	g := newRig(t, simgpu.Options{}, nil)
	win := window.NewHeadless(800, 600)
	frames := 0
	draw := ProducerFunc(func(*Frame) error {
		if frames++; frames == 2 {
			g.d.Lose()
		}
		return nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.r.Run(ctx, win, draw); !gpu.IsDeviceLost(err) {
		t.Fatalf("r.Run:\nhave %v\nwant %v", err, gpu.ErrDeviceLost)
	}
}
