// Package frame drives a double- or triple-buffered frame loop
// on top of a gpu.Device.
//
// A Renderer owns N frame slots, each with its own command
// buffer, descriptor pool, completion fence and semaphores, and
// the swapchain they render to. BeginFrame waits until the
// current slot is free, acquires an image and opens the render
// bracket; EndFrame closes it, submits and presents. Whenever
// the presentation engine reports that the swapchain no longer
// matches the surface, the swapchain is flagged and rebuilt
// before the next frame:
//
//	for {
//		img, st, err := r.BeginFrame()
//		if st == frame.Fatal {
//			return err
//		}
//		if st != frame.Ok {
//			continue
//		}
//		// record draws
//		if st, err := r.EndFrame(img); st == frame.Fatal {
//			return err
//		}
//	}
//
// Run implements this loop, together with event pumping and
// pausing while the window is minimized.
//
// A Renderer is driven by a single goroutine. Only
// RequestSwapchainRecreate, State, NeedsRecreate, SetClearColor,
// ClearColor and Stats may be called from other goroutines.
package frame

import (
	"log/slog"
	"sync"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	// ErrNotRecording is returned by recording calls made
	// outside of a BeginFrame/EndFrame pair.
	ErrNotRecording = errors.New("frame: no frame is being recorded")
	// ErrFrameActive is returned when an operation that needs
	// the GPU to be idle is attempted while a frame is being
	// recorded.
	ErrFrameActive = errors.New("frame: a frame is being recorded")
	// ErrNoMeshShader is returned by DrawMesh if the device
	// does not support mesh shaders.
	ErrNoMeshShader = errors.New("frame: mesh shaders not supported")
	// ErrClosed is returned after Destroy.
	ErrClosed = errors.New("frame: renderer destroyed")
)

// Drawable is anything that can report the size of its drawable
// area in pixels. It is consulted when the surface lets the
// swapchain choose its extent.
type Drawable interface {
	DrawableSize() (width, height int)
}

// Renderer is the frame pipeline of one device and one surface.
type Renderer struct {
	id    uuid.UUID
	dev   gpu.Device
	win   Drawable
	cfg   Config
	log   *slog.Logger
	stats *frameStats

	lc    lifecycle
	sc    swapchain
	slots []*frameSlot
	// cur is the slot of the next frame.
	cur int
	// serial numbers the frames.
	serial uint64

	// active is the frame being recorded, if any.
	active *target
	image  int

	clearMu sync.Mutex
	clear   [4]float32

	closed bool
}

// New creates a renderer and its initial swapchain. If the
// surface is minimized, the swapchain is created by the first
// BeginFrame that finds it restored.
func New(dev gpu.Device, win Drawable, cfg Config) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		id:    uuid.New(),
		dev:   dev,
		win:   win,
		cfg:   cfg,
		stats: newFrameStats(cfg.FPSWindow),
		clear: cfg.ClearColor,
	}
	l := cfg.Logger
	if l == nil {
		l = Logger()
	}
	r.log = l.With("renderer", r.id.String())
	r.sc.depthFormat = cfg.DepthFormat

	slots, err := newSlots(dev, cfg.FramesInFlight, cfg.Descriptors)
	if err != nil {
		return nil, err
	}
	r.slots = slots
	r.lc.request()
	if err := r.RecreateSwapchain(); err != nil {
		r.Destroy()
		return nil, err
	}
	r.log.Info("renderer created", "frames_in_flight", cfg.FramesInFlight, "state", r.State())
	return r, nil
}

// ID returns the unique id of r, which is attached to every log
// record it emits.
func (r *Renderer) ID() uuid.UUID { return r.id }

// FramesInFlight returns the number of frame slots.
func (r *Renderer) FramesInFlight() int { return len(r.slots) }

// Stats returns a snapshot of the frame counters.
func (r *Renderer) Stats() Stats { return r.stats.snapshot() }

// SetClearColor sets the color the swapchain image is cleared to
// at the start of every frame.
func (r *Renderer) SetClearColor(red, green, blue, alpha float32) {
	r.clearMu.Lock()
	r.clear = [4]float32{red, green, blue, alpha}
	r.clearMu.Unlock()
}

// ClearColor returns the current clear color.
func (r *Renderer) ClearColor() [4]float32 {
	r.clearMu.Lock()
	defer r.clearMu.Unlock()
	return r.clear
}

// Destroy waits for the device to be idle and destroys every
// object the renderer created. The device itself is not closed.
func (r *Renderer) Destroy() {
	if r.closed {
		return
	}
	r.closed = true
	if err := r.dev.WaitIdle(); err != nil {
		r.log.Warn("wait idle before destroy", "err", err)
	}
	r.destroySwapchain()
	for _, s := range r.slots {
		s.destroy()
	}
	r.slots = nil
	r.active = nil
	r.log.Info("renderer destroyed")
}
