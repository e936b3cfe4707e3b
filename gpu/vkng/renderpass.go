package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// passKey identifies a cached render pass.
type passKey struct {
	color, depth   core1_0.Format
	cload, dload   core1_0.AttachmentLoadOp
	cstore, dstore core1_0.AttachmentStoreOp
}

func passKeyOf(info gpu.RenderingInfo) passKey {
	k := passKey{
		color:  convFormat(info.Color.Format),
		cload:  convLoadOp(info.Color.Load),
		cstore: convStoreOp(info.Color.Store),
	}
	if info.Depth != nil {
		k.depth = convFormat(info.Depth.Format)
		k.dload = convLoadOp(info.Depth.Load)
		k.dstore = convStoreOp(info.Depth.Store)
	}
	return k
}

// renderPassInfo describes a render pass that neither
// transitions nor depends on anything outside itself: the
// caller's barriers move the attachments in and out of
// attachment layouts.
func renderPassInfo(k passKey) core1_0.RenderPassCreateInfo {
	info := core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         k.color,
				Samples:        core1_0.Samples1,
				LoadOp:         k.cload,
				StoreOp:        k.cstore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutColorAttachmentOptimal,
				FinalLayout:    core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{Attachment: 0, Layout: core1_0.ImageLayoutColorAttachmentOptimal},
				},
			},
		},
	}
	if k.depth != core1_0.FormatUndefined {
		info.Attachments = append(info.Attachments, core1_0.AttachmentDescription{
			Format:         k.depth,
			Samples:        core1_0.Samples1,
			LoadOp:         k.dload,
			StoreOp:        k.dstore,
			StencilLoadOp:  k.dload,
			StencilStoreOp: k.dstore,
			InitialLayout:  core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		})
		info.Subpasses[0].DepthStencilAttachment = &core1_0.AttachmentReference{
			Attachment: 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	return info
}

func (d *Device) renderPass(k passKey) (core1_0.RenderPass, error) {
	if rp, ok := d.passes[k]; ok {
		return rp, nil
	}
	rp, res, err := d.driver.CreateRenderPass(nil, renderPassInfo(k))
	if err := check(res, err, "vkng: create render pass"); err != nil {
		return core1_0.RenderPass{}, err
	}
	d.passes[k] = rp
	return rp, nil
}

// fbKey identifies a cached framebuffer.
type fbKey struct {
	pass   passKey
	color  *imageView
	depth  *imageView
	extent gpu.Extent
}

func (d *Device) framebuffer(k fbKey, pass core1_0.RenderPass) (core1_0.Framebuffer, error) {
	if fb, ok := d.framebuffers[k]; ok {
		return fb, nil
	}
	if k.extent.Degenerate() {
		return core1_0.Framebuffer{}, errors.Newf("vkng: framebuffer extent %v", k.extent)
	}
	views := []core1_0.ImageView{k.color.v}
	if k.depth != nil {
		views = append(views, k.depth.v)
	}
	fb, res, err := d.driver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  pass,
		Attachments: views,
		Width:       k.extent.Width,
		Height:      k.extent.Height,
		Layers:      1,
	})
	if err := check(res, err, "vkng: create framebuffer"); err != nil {
		return core1_0.Framebuffer{}, err
	}
	d.framebuffers[k] = fb
	return fb, nil
}

// forgetView destroys the framebuffers that reference v.
// The caller guarantees that the device no longer uses them, as
// it does for v itself.
func (d *Device) forgetView(v *imageView) {
	for k, fb := range d.framebuffers {
		if k.color == v || k.depth == v {
			d.driver.DestroyFramebuffer(fb, nil)
			delete(d.framebuffers, k)
		}
	}
}
