package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type cmdBuffer struct {
	d  *Device
	cb core1_0.CommandBuffer
	// err is the first recording error since Begin.
	// Recording methods cannot fail, so End reports it.
	err error
}

// NewCmdBuffer implements gpu.Device.
func (d *Device) NewCmdBuffer() (gpu.CmdBuffer, error) {
	cbs, res, err := d.driver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        d.cmdPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err := check(res, err, "vkng: allocate command buffer"); err != nil {
		return nil, err
	}
	return &cmdBuffer{d: d, cb: cbs[0]}, nil
}

func (cb *cmdBuffer) Destroy() {
	if cb.cb.Initialized() {
		cb.d.driver.FreeCommandBuffers(cb.cb)
		cb.cb = core1_0.CommandBuffer{}
	}
}

func (cb *cmdBuffer) Reset() error {
	cb.err = nil
	res, err := cb.d.driver.ResetCommandBuffer(cb.cb, 0)
	return check(res, err, "vkng: reset command buffer")
}

func (cb *cmdBuffer) Begin() error {
	cb.err = nil
	res, err := cb.d.driver.BeginCommandBuffer(cb.cb, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	return check(res, err, "vkng: begin command buffer")
}

func (cb *cmdBuffer) End() error {
	res, err := cb.d.driver.EndCommandBuffer(cb.cb)
	if cb.err != nil {
		return cb.err
	}
	return check(res, err, "vkng: end command buffer")
}

func (cb *cmdBuffer) fail(err error) {
	if err == nil {
		return
	}
	if cb.err == nil {
		cb.err = err
	}
	cb.d.log.Error("vkng: recording", "err", err)
}

func (cb *cmdBuffer) Barrier(b ...gpu.ImageBarrier) {
	for _, x := range b {
		im, err := asImage(x.Image)
		if err != nil {
			cb.fail(err)
			continue
		}
		src, dst := convStage(x.SrcStage), convStage(x.DstStage)
		if src == 0 {
			src = core1_0.PipelineStageTopOfPipe
		}
		if dst == 0 {
			dst = core1_0.PipelineStageBottomOfPipe
		}
		err = cb.d.driver.CmdPipelineBarrier(cb.cb, src, dst, 0, nil, nil, []core1_0.ImageMemoryBarrier{
			{
				SrcAccessMask:       convAccess(x.SrcAccess),
				DstAccessMask:       convAccess(x.DstAccess),
				OldLayout:           convLayout(x.OldLayout),
				NewLayout:           convLayout(x.NewLayout),
				SrcQueueFamilyIndex: -1,
				DstQueueFamilyIndex: -1,
				Image:               im.img,
				SubresourceRange: core1_0.ImageSubresourceRange{
					AspectMask:     convAspect(x.Aspect),
					BaseMipLevel:   0,
					LevelCount:     1,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
			},
		})
		cb.fail(errors.Wrap(err, "vkng: barrier"))
	}
}

func (cb *cmdBuffer) BeginRendering(info gpu.RenderingInfo) {
	color, ok := info.Color.View.(*imageView)
	if !ok || !color.v.Initialized() {
		cb.fail(errors.Wrap(gpu.ErrDestroyed, "vkng: color view"))
		return
	}
	var depth *imageView
	if info.Depth != nil {
		depth, ok = info.Depth.View.(*imageView)
		if !ok || !depth.v.Initialized() {
			cb.fail(errors.Wrap(gpu.ErrDestroyed, "vkng: depth view"))
			return
		}
	}
	pass, err := cb.d.renderPass(passKeyOf(info))
	if err != nil {
		cb.fail(err)
		return
	}
	extent := gpu.Extent{Width: info.Area.X + info.Area.Width, Height: info.Area.Y + info.Area.Height}
	fb, err := cb.d.framebuffer(fbKey{pass: passKeyOf(info), color: color, depth: depth, extent: extent}, pass)
	if err != nil {
		cb.fail(err)
		return
	}

	clear := []core1_0.ClearValue{core1_0.ClearValueFloat(info.Color.Clear)}
	if info.Depth != nil {
		clear = append(clear, core1_0.ClearValueDepthStencil{Depth: info.Depth.ClearDepth, Stencil: info.Depth.ClearStencil})
	}
	err = cb.d.driver.CmdBeginRenderPass(cb.cb, core1_0.SubpassContentsInline, core1_0.RenderPassBeginInfo{
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea:  convRect(info.Area),
		ClearValues: clear,
	})
	cb.fail(errors.Wrap(err, "vkng: begin render pass"))
}

func (cb *cmdBuffer) EndRendering() {
	cb.d.driver.CmdEndRenderPass(cb.cb)
}

func (cb *cmdBuffer) SetViewport(vp gpu.Viewport) {
	cb.d.driver.CmdSetViewport(cb.cb, core1_0.Viewport{
		X:        vp.X,
		Y:        vp.Y,
		Width:    vp.Width,
		Height:   vp.Height,
		MinDepth: vp.MinDepth,
		MaxDepth: vp.MaxDepth,
	})
}

func (cb *cmdBuffer) SetScissor(sciss gpu.Rect) {
	cb.d.driver.CmdSetScissor(cb.cb, convRect(sciss))
}

// PushConstants records against the device's shared layout, so
// it is compatible with any pipeline whose layout declares the
// same push constant range.
func (cb *cmdBuffer) PushConstants(stages gpu.ShaderStage, offset int, data []byte) {
	if offset+len(data) > cb.d.opts.PushConstantSize {
		cb.fail(errors.Newf("vkng: push constants [%d, %d) exceed %d bytes", offset, offset+len(data), cb.d.opts.PushConstantSize))
		return
	}
	cb.d.driver.CmdPushConstants(cb.cb, cb.d.pushLayout, convShaderStage(stages), offset, data)
}

func (cb *cmdBuffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance int) {
	cb.d.driver.CmdDraw(cb.cb, vertexCount, instanceCount, uint32(firstVertex), uint32(firstInstance))
}

// DrawMeshTasks fails the recording: the device never reports
// Features.MeshShader.
func (cb *cmdBuffer) DrawMeshTasks(groupCountX, groupCountY, groupCountZ int) {
	cb.fail(errors.Newf("vkng: mesh draw (%d, %d, %d) without mesh shader support",
		groupCountX, groupCountY, groupCountZ))
}
