package frame

import "github.com/boulderengine/frames/gpu"

// colorAcquireBarrier transitions a presentable image from its
// last known layout to color attachment. Only color attachment
// output waits, so earlier stages of the frame can overlap the
// acquire.
func colorAcquireBarrier(img gpu.Image, from gpu.Layout) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:     img,
		Aspect:    gpu.AspectColor,
		OldLayout: from,
		NewLayout: gpu.LayoutColorAttachment,
		SrcStage:  gpu.StageColorAttachmentOutput,
		DstStage:  gpu.StageColorAttachmentOutput,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
	}
}

func colorPresentBarrier(img gpu.Image) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:     img,
		Aspect:    gpu.AspectColor,
		OldLayout: gpu.LayoutColorAttachment,
		NewLayout: gpu.LayoutPresent,
		SrcStage:  gpu.StageColorAttachmentOutput,
		DstStage:  gpu.StageBottomOfPipe,
		SrcAccess: gpu.AccessColorAttachmentWrite,
		DstAccess: gpu.AccessNone,
	}
}

// depthBarrier discards the previous contents of the depth
// image, which is cleared on load every frame.
func depthBarrier(img gpu.Image, format gpu.Format) gpu.ImageBarrier {
	aspect := gpu.AspectDepth
	if format.HasStencil() {
		aspect |= gpu.AspectStencil
	}
	const stages = gpu.StageEarlyFragmentTests | gpu.StageLateFragmentTests
	return gpu.ImageBarrier{
		Image:     img,
		Aspect:    aspect,
		OldLayout: gpu.LayoutUndefined,
		NewLayout: gpu.LayoutDepthAttachment,
		SrcStage:  stages,
		DstStage:  stages,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessDepthStencilAttachmentRead | gpu.AccessDepthStencilAttachmentWrite,
	}
}

// target is what a frame renders to.
type target struct {
	image  *swapImage
	depth  gpu.Image
	dview  gpu.ImageView
	dfmt   gpu.Format
	format gpu.Format
	extent gpu.Extent
}

func (r *Renderer) renderingInfo(t *target) gpu.RenderingInfo {
	info := gpu.RenderingInfo{
		Area: gpu.Rect{Width: t.extent.Width, Height: t.extent.Height},
		Color: gpu.ColorAttachment{
			View:   t.image.view,
			Format: t.format,
			Load:   r.cfg.ColorLoad,
			Store:  r.cfg.ColorStore,
			Clear:  r.ClearColor(),
		},
	}
	if t.depth != nil {
		info.Depth = &gpu.DepthAttachment{
			View:       t.dview,
			Format:     t.dfmt,
			Load:       r.cfg.DepthLoad,
			Store:      r.cfg.DepthStore,
			ClearDepth: r.cfg.ClearDepth,
		}
	}
	return info
}

// openBracket records everything a frame needs before the
// producer draws: layout transitions, the render bracket and a
// viewport and scissor covering the whole target.
func (r *Renderer) openBracket(cmd gpu.CmdBuffer, t *target) {
	barriers := []gpu.ImageBarrier{colorAcquireBarrier(t.image.image, t.image.layout)}
	if t.depth != nil {
		barriers = append(barriers, depthBarrier(t.depth, t.dfmt))
	}
	cmd.Barrier(barriers...)
	t.image.layout = gpu.LayoutColorAttachment
	cmd.BeginRendering(r.renderingInfo(t))
	cmd.SetViewport(gpu.Viewport{
		Width:    float32(t.extent.Width),
		Height:   float32(t.extent.Height),
		MaxDepth: 1,
	})
	cmd.SetScissor(gpu.Rect{Width: t.extent.Width, Height: t.extent.Height})
}

// closeBracket ends the render bracket and hands the image over
// to the presentation engine.
func (r *Renderer) closeBracket(cmd gpu.CmdBuffer, t *target) {
	cmd.EndRendering()
	cmd.Barrier(colorPresentBarrier(t.image.image))
	t.image.layout = gpu.LayoutPresent
}
