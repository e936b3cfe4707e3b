package frame

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
)

// Status is the outcome of BeginFrame and EndFrame.
type Status int

// Frame statuses.
const (
	// Ok means the frame proceeds (BeginFrame) or was
	// submitted and queued for presentation (EndFrame).
	Ok Status = iota
	// RetryAfterRecreate means no image was acquired.
	// BeginFrame should be called again; unless
	// Config.AutoRecreate is off, the swapchain was already
	// rebuilt (or found minimized).
	RetryAfterRecreate
	// SoftFail means the frame was dropped or not presented.
	// The pipeline recovers by itself.
	SoftFail
	// Fatal means the device is lost or the renderer is
	// unusable. The returned error tells which.
	Fatal
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case RetryAfterRecreate:
		return "RetryAfterRecreate"
	case SoftFail:
		return "SoftFail"
	case Fatal:
		return "Fatal"
	}
	return "Status(?)"
}

// BeginFrame waits for the current frame slot to retire,
// acquires a swapchain image and opens the render bracket.
// When it returns Ok, the image is exclusively writable by the
// caller until the matching EndFrame.
//
// The wait on the slot's fence is unbounded: it is what keeps
// the CPU at most N frames ahead of the GPU.
func (r *Renderer) BeginFrame() (int, Status, error) {
	switch {
	case r.closed:
		return -1, Fatal, ErrClosed
	case r.active != nil:
		return -1, Fatal, ErrFrameActive
	}

	if r.lc.get() != Stable {
		r.stats.retried()
		if r.cfg.AutoRecreate {
			if err := r.RecreateSwapchain(); gpu.IsDeviceLost(err) {
				return -1, Fatal, r.fatal(err)
			}
		}
		return -1, RetryAfterRecreate, nil
	}

	slot := r.slots[r.cur]
	if err := slot.fence.Wait(); err != nil {
		if gpu.IsDeviceLost(err) {
			return -1, Fatal, r.fatal(err)
		}
		// Nothing was acquired yet, so a rebuild is enough.
		r.log.Error("wait for frame slot", "slot", slot.index, "err", err)
		r.lc.request()
		r.stats.retried()
		return -1, RetryAfterRecreate, nil
	}

	idx, err := r.sc.handle.Acquire(slot.acquire)
	switch {
	case err == nil:
	case errors.Is(err, gpu.ErrSuboptimal):
		// The image is ours and its semaphore will be
		// signaled: render it and rebuild afterwards.
		r.log.Debug("acquired image from suboptimal swapchain", "image", idx)
		r.lc.request()
	case gpu.IsDeviceLost(err):
		return -1, Fatal, r.fatal(err)
	default:
		if !errors.Is(err, gpu.ErrOutOfDate) {
			r.log.Warn("acquire failed", "err", err)
		}
		r.lc.request()
		r.stats.retried()
		return -1, RetryAfterRecreate, nil
	}

	img := &r.sc.images[idx]
	if owner := img.owner; owner != nil && owner != slot && owner.serial == img.serial {
		// More images than slots: the image may still be in use
		// by a frame of another slot.
		if err := owner.fence.Wait(); err != nil {
			if gpu.IsDeviceLost(err) {
				return -1, Fatal, r.fatal(err)
			}
			r.dropFrame(slot, "wait for image owner", err)
			return -1, RetryAfterRecreate, nil
		}
	}

	if err := slot.fence.Reset(); err != nil {
		if gpu.IsDeviceLost(err) {
			return -1, Fatal, r.fatal(err)
		}
		r.dropFrame(slot, "fence reset", err)
		return -1, RetryAfterRecreate, nil
	}
	r.serial++
	slot.serial = r.serial
	img.owner, img.serial = slot, slot.serial
	if err := slot.reset(); err != nil {
		r.dropFrame(slot, "slot reset", err)
		return -1, RetryAfterRecreate, nil
	}
	if err := slot.cmd.Begin(); err != nil {
		if gpu.IsDeviceLost(err) {
			return -1, Fatal, r.fatal(err)
		}
		r.dropFrame(slot, "begin", err)
		return -1, RetryAfterRecreate, nil
	}

	t := &target{
		image:  img,
		format: r.sc.format,
		extent: r.sc.extent,
	}
	if r.sc.depth != nil {
		t.depth, t.dview, t.dfmt = r.sc.depth, r.sc.depthView, r.sc.depthFormat
	}
	r.openBracket(slot.cmd, t)
	r.active = t
	r.image = idx
	return idx, Ok, nil
}

// EndFrame closes the render bracket of the current frame,
// submits its commands and presents image, which must be the
// index BeginFrame returned.
func (r *Renderer) EndFrame(image int) (Status, error) {
	switch {
	case r.closed:
		return Fatal, ErrClosed
	case r.active == nil || image != r.image:
		return SoftFail, ErrNotRecording
	}
	slot := r.slots[r.cur]
	r.closeBracket(slot.cmd, r.active)
	r.active = nil
	r.cur = (r.cur + 1) % len(r.slots)

	if err := slot.cmd.End(); err != nil {
		if gpu.IsDeviceLost(err) {
			return Fatal, r.fatal(err)
		}
		r.dropFrame(slot, "end", err)
		return SoftFail, nil
	}
	err := r.dev.Submit(gpu.SubmitInfo{
		Wait:      slot.acquire,
		WaitStage: gpu.StageColorAttachmentOutput,
		Cmd:       slot.cmd,
		Signal:    slot.renderDone,
		Fence:     slot.fence,
	})
	if err != nil {
		if gpu.IsDeviceLost(err) {
			return Fatal, r.fatal(err)
		}
		r.dropFrame(slot, "submit", err)
		return SoftFail, nil
	}
	r.stats.frame()

	err = r.dev.Present(gpu.PresentInfo{
		Wait:      slot.renderDone,
		Swapchain: r.sc.handle,
		Index:     image,
	})
	switch {
	case err == nil:
		return Ok, nil
	case errors.Is(err, gpu.ErrSuboptimal):
		r.lc.request()
		return Ok, nil
	case errors.Is(err, gpu.ErrOutOfDate):
		r.lc.request()
		return SoftFail, nil
	case gpu.IsDeviceLost(err):
		return Fatal, r.fatal(err)
	}
	r.log.Warn("present failed", "image", image, "err", err)
	r.lc.request()
	return SoftFail, nil
}

// dropFrame abandons the frame of slot s after its image was
// acquired. An empty submission consumes the acquire semaphore
// and signals the fence, so that neither is left pending. If
// that is not possible the fence is replaced. In both cases the
// acquired image is reclaimed by a recreation.
func (r *Renderer) dropFrame(s *frameSlot, stage string, cause error) {
	r.log.Warn("frame dropped", "slot", s.index, "stage", stage, "err", cause)
	r.stats.dropped()
	r.active = nil
	r.lc.request()

	err := s.fence.Reset()
	if err == nil {
		err = r.dev.Submit(gpu.SubmitInfo{
			Wait:      s.acquire,
			WaitStage: gpu.StageColorAttachmentOutput,
			Fence:     s.fence,
		})
		if err == nil {
			return
		}
	}
	r.log.Error("cannot retire dropped frame", "slot", s.index, "err", err)
	if err := s.renewFence(r.dev); err != nil {
		r.log.Error("cannot renew slot fence", "slot", s.index, "err", err)
	}
	for i := range r.sc.images {
		if r.sc.images[i].owner == s {
			r.sc.images[i].owner = nil
		}
	}
}

func (r *Renderer) fatal(err error) error {
	r.log.Error("device lost", "err", err)
	r.active = nil
	return err
}
