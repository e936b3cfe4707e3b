// Package simgpu implements gpu.Device on top of goroutines.
//
// The simulated device has a single in-order graphics queue
// driven by its own goroutine, so submissions genuinely execute
// asynchronously with respect to the caller. Presentation is
// queued on the same queue, in order with submissions. Fences
// block, binary semaphores order queue operations, and swapchain
// images cycle through the presentation engine the way a real
// driver cycles them.
//
// The device also records usage that an explicit API would
// reject (resetting a pending command buffer, waiting on a
// destroyed fence, signaling a semaphore twice, ...) so tests
// can assert that none happened. See Violations.
package simgpu

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Options configures a simulated device.
type Options struct {
	// Surface is the initial extent of the presentable
	// surface.
	Surface gpu.Extent
	// UndefinedExtent makes SurfaceCapabilities report
	// gpu.UndefinedExtent, leaving the extent choice to the
	// caller.
	UndefinedExtent bool
	MinImageCount   int
	MaxImageCount   int
	MinImageExtent  gpu.Extent
	MaxImageExtent  gpu.Extent
	// EagerRelease makes presented images acquirable as soon
	// as their presentation is queued. The acquire semaphore
	// is then signaled only after the queued presentation has
	// consumed its own wait semaphore.
	EagerRelease bool
	// ReuseLatest makes Acquire hand out the most recently
	// released image first, as a mailbox presentation engine
	// may do, instead of the least recently released one.
	ReuseLatest bool
	// SuboptimalAcquire makes Acquire hand out images with
	// gpu.ErrSuboptimal, instead of failing with
	// gpu.ErrOutOfDate, when the surface was resized.
	SuboptimalAcquire bool
	// ExecTime is how long each submission takes to execute.
	ExecTime time.Duration
	Features gpu.Features
	Logger   *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Surface == (gpu.Extent{}) {
		o.Surface = gpu.Extent{Width: 800, Height: 600}
	}
	if o.MinImageCount == 0 {
		o.MinImageCount = 2
	}
	if o.MaxImageExtent == (gpu.Extent{}) {
		o.MaxImageExtent = gpu.Extent{Width: 16384, Height: 16384}
	}
	if o.MinImageExtent == (gpu.Extent{}) {
		o.MinImageExtent = gpu.Extent{Width: 1, Height: 1}
	}
	if o.Logger == nil {
		o.Logger = slog.New(discard{})
	}
}

// Stats counts object lifecycle events and device calls.
type Stats struct {
	SwapchainsCreated   int
	SwapchainsDestroyed int
	ViewsCreated        int
	ViewsDestroyed      int
	ImagesCreated       int
	ImagesDestroyed     int
	SemaphoresCreated   int
	SemaphoresDestroyed int
	FencesCreated       int
	FencesDestroyed     int
	CapabilityQueries   int
	Acquires            int
	Submits             int
	Presents            int
	Presented           int
	Executed            int
	WaitIdles           int
	PoolResets          int
}

// Device is a simulated gpu.Device.
type Device struct {
	opts Options
	log  *slog.Logger

	mu         sync.Mutex
	idle       *sync.Cond
	surface    gpu.Extent
	stats      Stats
	faults     map[Op][]error
	holds      map[int]chan struct{}
	pending    int
	submitSeq  int
	violations []string
	onCaps     func(n int)
	fences     map[*fence]struct{}

	lost atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	queue  chan queueOp
}

// New creates a simulated device and starts its queue
// goroutine.
func New(opts Options) *Device {
	opts.setDefaults()
	d := &Device{
		opts:    opts,
		log:     opts.Logger,
		surface: opts.Surface,
		faults:  make(map[Op][]error),
		holds:   make(map[int]chan struct{}),
		fences:  make(map[*fence]struct{}),
		queue:   make(chan queueOp, 512),
	}
	d.idle = sync.NewCond(&d.mu)
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.group, d.ctx = errgroup.WithContext(ctx)
	d.group.Go(d.runQueue)
	return d
}

// Features implements gpu.Device.
func (d *Device) Features() gpu.Features { return d.opts.Features }

// SetSurface changes the extent of the presentable surface, as
// a window resize would.
func (d *Device) SetSurface(e gpu.Extent) {
	d.mu.Lock()
	d.surface = e
	d.mu.Unlock()
}

// Surface returns the current surface extent.
func (d *Device) Surface() gpu.Extent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surface
}

// DrawableSize returns the surface extent, so the device can
// stand in for the window it presents to.
func (d *Device) DrawableSize() (int, int) {
	e := d.Surface()
	return e.Width, e.Height
}

// OnCapabilities registers a function that is called after
// every SurfaceCapabilities query has computed its result, and
// before that result is returned. n counts queries from 1.
func (d *Device) OnCapabilities(fn func(n int)) {
	d.mu.Lock()
	d.onCaps = fn
	d.mu.Unlock()
}

// SurfaceCapabilities implements gpu.Device.
func (d *Device) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	if d.lost.Load() {
		return gpu.SurfaceCapabilities{}, gpu.ErrDeviceLost
	}
	d.mu.Lock()
	if err := d.faultLocked(OpCapabilities); err != nil {
		d.mu.Unlock()
		return gpu.SurfaceCapabilities{}, err
	}
	d.stats.CapabilityQueries++
	n := d.stats.CapabilityQueries
	caps := gpu.SurfaceCapabilities{
		MinImageCount:  d.opts.MinImageCount,
		MaxImageCount:  d.opts.MaxImageCount,
		CurrentExtent:  d.surface,
		MinImageExtent: d.opts.MinImageExtent,
		MaxImageExtent: d.opts.MaxImageExtent,
		Formats:        []gpu.Format{gpu.FormatBGRA8SRGB, gpu.FormatBGRA8Unorm},
		PresentModes:   []gpu.PresentMode{gpu.PresentFIFO, gpu.PresentMailbox},
	}
	if d.opts.UndefinedExtent && !d.surface.Degenerate() {
		caps.CurrentExtent = gpu.UndefinedExtent
	}
	fn := d.onCaps
	d.mu.Unlock()

	if fn != nil {
		fn(n)
	}
	return caps, nil
}

// NewImageView implements gpu.Device.
func (d *Device) NewImageView(img gpu.Image, format gpu.Format, aspect gpu.Aspect) (gpu.ImageView, error) {
	if err := d.fault(OpImageView); err != nil {
		return nil, err
	}
	im, ok := img.(*Image)
	if !ok || im.destroyed.Load() {
		d.violate("image view of invalid image")
		return nil, errors.Wrap(gpu.ErrDestroyed, "simgpu: NewImageView")
	}
	d.count(func(s *Stats) { s.ViewsCreated++ })
	return &ImageView{d: d, Image: im, Format: format, Aspect: aspect}, nil
}

// NewDepthImage implements gpu.Device.
func (d *Device) NewDepthImage(extent gpu.Extent, format gpu.Format) (gpu.Image, error) {
	if err := d.fault(OpDepthImage); err != nil {
		return nil, err
	}
	if extent.Degenerate() {
		return nil, errors.Newf("simgpu: invalid depth extent %v", extent)
	}
	if !format.IsDepth() {
		return nil, errors.Newf("simgpu: %v is not a depth format", format)
	}
	d.count(func(s *Stats) { s.ImagesCreated++ })
	return &Image{d: d, Extent: extent, Format: format}, nil
}

// WaitIdle implements gpu.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.WaitIdles++
	for d.pending > 0 && !d.lost.Load() {
		d.idle.Wait()
	}
	if d.lost.Load() {
		return gpu.ErrDeviceLost
	}
	return nil
}

// Lose puts the device in the lost state. Pending and future
// waits fail with gpu.ErrDeviceLost.
func (d *Device) Lose() {
	d.lost.Store(true)
	d.mu.Lock()
	fs := make([]*fence, 0, len(d.fences))
	for f := range d.fences {
		fs = append(fs, f)
	}
	d.idle.Broadcast()
	d.mu.Unlock()
	for _, f := range fs {
		f.wake()
	}
	d.log.Warn("device lost")
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Violations returns descriptions of the invalid API usage
// observed so far.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Close stops the queue goroutine.
func (d *Device) Close() {
	d.cancel()
	d.mu.Lock()
	d.idle.Broadcast()
	d.mu.Unlock()
	if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Error("simgpu: close", "err", err)
	}
}

func (d *Device) count(fn func(s *Stats)) {
	d.mu.Lock()
	fn(&d.stats)
	d.mu.Unlock()
}

func (d *Device) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.mu.Lock()
	d.violations = append(d.violations, msg)
	d.mu.Unlock()
	d.log.Error("simgpu: invalid usage", "violation", msg)
}

type discard struct{}

func (discard) Enabled(context.Context, slog.Level) bool  { return false }
func (discard) Handle(context.Context, slog.Record) error { return nil }
func (discard) WithAttrs([]slog.Attr) slog.Handler        { return discard{} }
func (discard) WithGroup(string) slog.Handler             { return discard{} }
