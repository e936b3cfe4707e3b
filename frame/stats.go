package frame

import (
	"sync"
	"time"

	"github.com/loov/hrtime"
)

// Stats summarizes the frames driven by a Renderer.
type Stats struct {
	// Frames counts frames that were presented, or at least
	// submitted.
	Frames int
	// Dropped counts frames that began but were not submitted.
	Dropped int
	// Retries counts BeginFrame calls that returned
	// RetryAfterRecreate.
	Retries int
	// Recreations counts completed swapchain recreations, and
	// DeferredPasses those of them that were scheduled because
	// the surface changed during the previous one.
	Recreations    int
	DeferredPasses int
	// FrameTime is the duration between the last two frames,
	// and FPS the frame rate averaged over Config.FPSWindow
	// frames.
	FrameTime time.Duration
	FPS       float64
}

type frameStats struct {
	mu     sync.Mutex
	s      Stats
	last   time.Duration
	times  []time.Duration
	next   int
	window int
}

func newFrameStats(window int) *frameStats {
	return &frameStats{window: window}
}

// frame records a frame boundary.
func (fs *frameStats) frame() {
	now := hrtime.Now()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.s.Frames++
	if fs.last != 0 {
		dt := now - fs.last
		fs.s.FrameTime = dt
		if len(fs.times) < fs.window {
			fs.times = append(fs.times, dt)
		} else {
			fs.times[fs.next] = dt
			fs.next = (fs.next + 1) % fs.window
		}
		var sum time.Duration
		for _, t := range fs.times {
			sum += t
		}
		if sum > 0 {
			fs.s.FPS = float64(len(fs.times)) / sum.Seconds()
		}
	}
	fs.last = now
}

func (fs *frameStats) add(fn func(s *Stats)) {
	fs.mu.Lock()
	fn(&fs.s)
	fs.mu.Unlock()
}

func (fs *frameStats) dropped()   { fs.add(func(s *Stats) { s.Dropped++ }) }
func (fs *frameStats) retried()   { fs.add(func(s *Stats) { s.Retries++ }) }
func (fs *frameStats) recreated() { fs.add(func(s *Stats) { s.Recreations++ }) }
func (fs *frameStats) deferred()  { fs.add(func(s *Stats) { s.DeferredPasses++ }) }

func (fs *frameStats) snapshot() Stats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.s
}
