package frame

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// swapImage is a presentable image and its bookkeeping.
type swapImage struct {
	image gpu.Image
	view  gpu.ImageView
	// layout is the layout the image was left in.
	layout gpu.Layout
	// owner is the slot whose fence guards the last use of the
	// image, or nil. It is only ever waited on, and only while
	// the slot's serial still equals serial: once the slot
	// began a later frame its fence was already waited on.
	owner  *frameSlot
	serial uint64
}

// swapchain is the presentable-surface state of a Renderer.
type swapchain struct {
	handle      gpu.Swapchain
	extent      gpu.Extent
	format      gpu.Format
	presentMode gpu.PresentMode
	images      []swapImage

	depthFormat gpu.Format
	depth       gpu.Image
	depthView   gpu.ImageView
}

// chooseExtent returns the extent a new swapchain should have.
// A degenerate result means the surface is minimized.
func (r *Renderer) chooseExtent(caps gpu.SurfaceCapabilities) gpu.Extent {
	if caps.CurrentExtent != gpu.UndefinedExtent {
		return caps.CurrentExtent
	}
	w, h := r.win.DrawableSize()
	e := gpu.Extent{Width: w, Height: h}
	if e.Degenerate() {
		return e
	}
	return e.Clamp(caps.MinImageExtent, caps.MaxImageExtent)
}

func (r *Renderer) chooseImageCount(caps gpu.SurfaceCapabilities) int {
	n := caps.MinImageCount + 1
	if n < r.cfg.FramesInFlight {
		n = r.cfg.FramesInFlight
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

func (r *Renderer) chooseFormat(caps gpu.SurfaceCapabilities) gpu.Format {
	for _, f := range caps.Formats {
		if f == r.cfg.ColorFormat {
			return f
		}
	}
	if len(caps.Formats) > 0 {
		return caps.Formats[0]
	}
	return r.cfg.ColorFormat
}

// choosePresentMode falls back to FIFO, which every surface
// supports.
func (r *Renderer) choosePresentMode(caps gpu.SurfaceCapabilities) gpu.PresentMode {
	for _, m := range caps.PresentModes {
		if m == r.cfg.PresentMode {
			return m
		}
	}
	return gpu.PresentFIFO
}

// destroyAttachments destroys the image views and the depth
// buffer. The swapchain handle is kept.
func (r *Renderer) destroyAttachments() {
	sc := &r.sc
	for i := range sc.images {
		if sc.images[i].view != nil {
			sc.images[i].view.Destroy()
			sc.images[i].view = nil
		}
	}
	if sc.depthView != nil {
		sc.depthView.Destroy()
		sc.depthView = nil
	}
	if sc.depth != nil {
		sc.depth.Destroy()
		sc.depth = nil
	}
}

// createAttachments creates a view for every image and, if
// enabled, the depth buffer. Ownership and layouts are reset.
func (r *Renderer) createAttachments() error {
	sc := &r.sc
	imgs := sc.handle.Images()
	sc.images = make([]swapImage, len(imgs))
	for i, img := range imgs {
		sc.images[i] = swapImage{image: img, layout: gpu.LayoutUndefined}
		v, err := r.dev.NewImageView(img, sc.format, gpu.AspectColor)
		if err != nil {
			return errors.Wrapf(err, "frame: view of image %d", i)
		}
		sc.images[i].view = v
	}
	if sc.depthFormat == gpu.FormatUndefined || !r.dev.Features().DepthAttachment {
		return nil
	}
	d, err := r.dev.NewDepthImage(sc.extent, sc.depthFormat)
	if err != nil {
		return errors.Wrap(err, "frame: depth image")
	}
	sc.depth = d
	aspect := gpu.AspectDepth
	if sc.depthFormat.HasStencil() {
		aspect |= gpu.AspectStencil
	}
	if sc.depthView, err = r.dev.NewImageView(d, sc.depthFormat, aspect); err != nil {
		return errors.Wrap(err, "frame: depth view")
	}
	return nil
}

// RecreateSwapchain rebuilds the swapchain and everything that
// depends on its extent. It is a no-op while another recreation
// is in progress, and it leaves every resource untouched while
// the surface is minimized. Errors are logged and leave the
// swapchain flagged, so the next BeginFrame retries.
func (r *Renderer) RecreateSwapchain() error {
	if r.closed {
		return ErrClosed
	}
	if r.active != nil {
		return ErrFrameActive
	}
	if err := r.lc.begin(); err != nil {
		r.log.Debug("swapchain recreation already in progress")
		return nil
	}
	err := r.recreate()
	if err != nil {
		if aerr := r.lc.abort(); aerr != nil {
			return errors.CombineErrors(err, aerr)
		}
		if !errors.Is(err, errMinimized) {
			r.log.Error("swapchain recreation failed", "err", err)
			return err
		}
		r.log.Debug("surface minimized, swapchain recreation postponed")
		return nil
	}
	r.stats.recreated()
	again, capped, err := r.lc.finish(r.cfg.MaxDeferredRecreates)
	switch {
	case err != nil:
		return err
	case capped:
		r.log.Warn("surface kept changing during recreation, giving up",
			"passes", r.cfg.MaxDeferredRecreates)
	case again:
		r.stats.deferred()
		r.log.Debug("surface changed during recreation, another pass scheduled")
	}
	return nil
}

var errMinimized = errors.New("frame: surface minimized")

func (r *Renderer) recreate() error {
	caps, err := r.dev.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "frame: surface capabilities")
	}
	extent := r.chooseExtent(caps)
	if extent.Degenerate() {
		return errMinimized
	}

	// Every submission and presentation that may reference the
	// current images or semaphores must be over.
	if err := r.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "frame: wait idle")
	}
	r.destroyAttachments()

	sc := &r.sc
	old := sc.handle
	cfg := gpu.SwapchainConfig{
		Extent:      extent,
		ImageCount:  r.chooseImageCount(caps),
		Format:      r.chooseFormat(caps),
		PresentMode: r.choosePresentMode(caps),
		Old:         old,
	}
	handle, err := r.dev.NewSwapchain(cfg)
	if err != nil {
		return errors.Wrap(err, "frame: swapchain")
	}
	if old != nil {
		old.Destroy()
	}
	sc.handle = handle
	sc.extent = handle.Extent()
	sc.format = handle.Format()
	sc.presentMode = cfg.PresentMode
	if err := r.createAttachments(); err != nil {
		return err
	}
	for _, s := range r.slots {
		if err := s.renewSemaphores(r.dev); err != nil {
			return errors.Wrapf(err, "frame: semaphores of slot %d", s.index)
		}
	}
	r.cur = 0
	r.log.Info("swapchain created", "extent", sc.extent, "images", len(sc.images),
		"format", sc.format, "present", sc.presentMode)

	caps, err = r.dev.SurfaceCapabilities()
	if err != nil {
		if gpu.IsDeviceLost(err) {
			return errors.Wrap(err, "frame: surface capabilities")
		}
		r.log.Debug("surface query after recreation failed", "err", err)
		r.lc.markDeferred()
		return nil
	}
	if now := r.chooseExtent(caps); now != extent {
		r.log.Debug("surface resized during recreation", "was", extent, "now", now)
		r.lc.markDeferred()
	}
	return nil
}

func (r *Renderer) destroySwapchain() {
	r.destroyAttachments()
	if r.sc.handle != nil {
		r.sc.handle.Destroy()
		r.sc.handle = nil
	}
	r.sc.images = nil
}

// Extent returns the extent of the swapchain images.
func (r *Renderer) Extent() gpu.Extent { return r.sc.extent }

// ImageCount returns the number of swapchain images.
func (r *Renderer) ImageCount() int { return len(r.sc.images) }

// State returns the lifecycle state of the swapchain.
func (r *Renderer) State() State { return r.lc.get() }

// NeedsRecreate reports whether the swapchain is flagged for
// recreation.
func (r *Renderer) NeedsRecreate() bool { return r.lc.get() != Stable }

// RequestSwapchainRecreate flags the swapchain for recreation.
// It is safe to call from any goroutine, including while a
// recreation is in progress, in which case one more pass is
// scheduled.
func (r *Renderer) RequestSwapchainRecreate() { r.lc.request() }
