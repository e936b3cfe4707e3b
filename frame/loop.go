package frame

import (
	"context"
	"time"

	"github.com/boulderengine/frames/gpu"
	"github.com/boulderengine/frames/window"
)

// Frame is what a Producer draws into.
type Frame struct {
	r *Renderer

	// Image is the swapchain image index.
	Image int
	// Slot is the frame slot index.
	Slot int
	// Extent is the extent of the image.
	Extent gpu.Extent
	// Input is the input state after this frame's events.
	Input *window.Input
}

// CommandBuffer returns the frame's command buffer.
func (f *Frame) CommandBuffer() (gpu.CmdBuffer, error) { return f.r.CommandBuffer() }

// SetViewport sets the viewport. See Renderer.SetViewport.
func (f *Frame) SetViewport(vp gpu.Viewport) error { return f.r.SetViewport(vp) }

// SetScissor sets the scissor. See Renderer.SetScissor.
func (f *Frame) SetScissor(rect gpu.Rect) error { return f.r.SetScissor(rect) }

// SetPushConstants records push constants. See
// Renderer.SetPushConstants for the accepted data types.
func (f *Frame) SetPushConstants(stages gpu.ShaderStage, offset int, data any) error {
	return f.r.SetPushConstants(stages, offset, data)
}

// Draw records a non-indexed draw.
func (f *Frame) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) error {
	return f.r.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawMesh dispatches mesh shader work groups. See
// Renderer.DrawMesh.
func (f *Frame) DrawMesh(groupCountX, groupCountY, groupCountZ int) error {
	return f.r.DrawMesh(groupCountX, groupCountY, groupCountZ)
}

// AllocateDescriptorSet allocates a descriptor set that lives
// until the frame's slot comes around again.
func (f *Frame) AllocateDescriptorSet(layout gpu.DescriptorLayout) (gpu.DescriptorSet, error) {
	return f.r.AllocateDescriptorSet(layout)
}

// Producer records the draws of a frame. It must not open or
// close the render bracket nor touch synchronization objects.
type Producer interface {
	Draw(f *Frame) error
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(f *Frame) error

func (fn ProducerFunc) Draw(f *Frame) error { return fn(f) }

// Run drives frames until win reports Quit, ctx is done or the
// device is lost. Resize events flag the swapchain for
// recreation. Without Config.AutoRecreate, Run recreates the
// swapchain itself when BeginFrame asks for it. While the
// drawable area is empty, or after a failed recreation, Run
// sleeps instead of rendering.
//
// Producer errors are logged; the frame is still ended.
func (r *Renderer) Run(ctx context.Context, win window.Window, draw Producer) error {
	var (
		q  window.Queue
		in = window.NewInput()
		t  = time.NewTimer(0)
	)
	defer t.Stop()
	<-t.C
	pause := func() error {
		t.Reset(r.cfg.PausePoll)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		win.Pump(&q)
		for _, ev := range q.Drain() {
			switch ev.Kind {
			case window.Quit:
				r.log.Info("quit requested")
				return nil
			case window.Resize, window.Restore:
				r.RequestSwapchainRecreate()
			}
			in.Apply(ev)
		}

		if w, h := win.DrawableSize(); w <= 0 || h <= 0 {
			if err := pause(); err != nil {
				return err
			}
			continue
		}

		img, st, err := r.BeginFrame()
		switch st {
		case Fatal:
			return err
		case Ok:
		case RetryAfterRecreate:
			if r.cfg.AutoRecreate || !r.NeedsRecreate() {
				continue
			}
			if err := r.RecreateSwapchain(); err != nil {
				if gpu.IsDeviceLost(err) {
					return err
				}
				if err := pause(); err != nil {
					return err
				}
			}
			continue
		default:
			continue
		}
		if draw != nil {
			f := &Frame{r: r, Image: img, Slot: r.cur, Extent: r.Extent(), Input: in}
			if err := draw.Draw(f); err != nil {
				r.log.Warn("producer failed", "image", img, "err", err)
			}
		}
		if st, err := r.EndFrame(img); st == Fatal {
			return err
		}
		in.EndFrame()
	}
}
