package vkng

import (
	"github.com/boulderengine/frames/gpu"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

var formats = []struct {
	gpu gpu.Format
	vk  core1_0.Format
}{
	{gpu.FormatBGRA8SRGB, core1_0.FormatB8G8R8A8SRGB},
	{gpu.FormatRGBA8SRGB, core1_0.FormatR8G8B8A8SRGB},
	{gpu.FormatBGRA8Unorm, core1_0.FormatB8G8R8A8UnsignedNormalized},
	{gpu.FormatD16Unorm, core1_0.FormatD16UnsignedNormalized},
	{gpu.FormatD32Float, core1_0.FormatD32SignedFloat},
	{gpu.FormatD24UnormS8, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
	{gpu.FormatD32FloatS8, core1_0.FormatD32SignedFloatS8UnsignedInt},
}

func convFormat(f gpu.Format) core1_0.Format {
	for _, x := range formats {
		if x.gpu == f {
			return x.vk
		}
	}
	return core1_0.FormatUndefined
}

// formatOf returns gpu.FormatUndefined for formats the gpu
// package cannot name.
func formatOf(f core1_0.Format) gpu.Format {
	for _, x := range formats {
		if x.vk == f {
			return x.gpu
		}
	}
	return gpu.FormatUndefined
}

func convLayout(l gpu.Layout) core1_0.ImageLayout {
	switch l {
	case gpu.LayoutColorAttachment:
		return core1_0.ImageLayoutColorAttachmentOptimal
	case gpu.LayoutDepthAttachment:
		return core1_0.ImageLayoutDepthStencilAttachmentOptimal
	case gpu.LayoutPresent:
		return khr_swapchain.ImageLayoutPresentSrc
	}
	return core1_0.ImageLayoutUndefined
}

func convStage(s gpu.PipelineStage) (vs core1_0.PipelineStageFlags) {
	if s&gpu.StageTopOfPipe != 0 {
		vs |= core1_0.PipelineStageTopOfPipe
	}
	if s&gpu.StageEarlyFragmentTests != 0 {
		vs |= core1_0.PipelineStageEarlyFragmentTests
	}
	if s&gpu.StageLateFragmentTests != 0 {
		vs |= core1_0.PipelineStageLateFragmentTests
	}
	if s&gpu.StageColorAttachmentOutput != 0 {
		vs |= core1_0.PipelineStageColorAttachmentOutput
	}
	if s&gpu.StageBottomOfPipe != 0 {
		vs |= core1_0.PipelineStageBottomOfPipe
	}
	return
}

func convAccess(a gpu.Access) (va core1_0.AccessFlags) {
	if a&gpu.AccessColorAttachmentRead != 0 {
		va |= core1_0.AccessColorAttachmentRead
	}
	if a&gpu.AccessColorAttachmentWrite != 0 {
		va |= core1_0.AccessColorAttachmentWrite
	}
	if a&gpu.AccessDepthStencilAttachmentRead != 0 {
		va |= core1_0.AccessDepthStencilAttachmentRead
	}
	if a&gpu.AccessDepthStencilAttachmentWrite != 0 {
		va |= core1_0.AccessDepthStencilAttachmentWrite
	}
	return
}

func convAspect(a gpu.Aspect) (va core1_0.ImageAspectFlags) {
	if a&gpu.AspectColor != 0 {
		va |= core1_0.ImageAspectColor
	}
	if a&gpu.AspectDepth != 0 {
		va |= core1_0.ImageAspectDepth
	}
	if a&gpu.AspectStencil != 0 {
		va |= core1_0.ImageAspectStencil
	}
	return
}

// convShaderStage drops the stages that need extensions this
// backend does not enable (task, mesh).
func convShaderStage(s gpu.ShaderStage) (vs core1_0.ShaderStageFlags) {
	if s&gpu.ShaderVertex != 0 {
		vs |= core1_0.StageVertex
	}
	if s&gpu.ShaderFragment != 0 {
		vs |= core1_0.StageFragment
	}
	if s&gpu.ShaderCompute != 0 {
		vs |= core1_0.StageCompute
	}
	return
}

func convLoadOp(op gpu.LoadOp) core1_0.AttachmentLoadOp {
	switch op {
	case gpu.LoadKeep:
		return core1_0.AttachmentLoadOpLoad
	case gpu.LoadDontCare:
		return core1_0.AttachmentLoadOpDontCare
	}
	return core1_0.AttachmentLoadOpClear
}

func convStoreOp(op gpu.StoreOp) core1_0.AttachmentStoreOp {
	if op == gpu.StoreDontCare {
		return core1_0.AttachmentStoreOpDontCare
	}
	return core1_0.AttachmentStoreOpStore
}

func convDescriptorType(t gpu.DescriptorType) core1_0.DescriptorType {
	switch t {
	case gpu.DescStorageBuffer:
		return core1_0.DescriptorTypeStorageBuffer
	case gpu.DescCombinedImageSampler:
		return core1_0.DescriptorTypeCombinedImageSampler
	}
	return core1_0.DescriptorTypeUniformBuffer
}

func convPresentMode(m gpu.PresentMode) khr_surface.PresentMode {
	switch m {
	case gpu.PresentMailbox:
		return khr_surface.PresentModeMailbox
	case gpu.PresentImmediate:
		return khr_surface.PresentModeImmediate
	}
	return khr_surface.PresentModeFIFO
}

// presentModeOf reports false for modes the gpu package cannot
// name (shared refresh modes and the like).
func presentModeOf(m khr_surface.PresentMode) (gpu.PresentMode, bool) {
	switch m {
	case khr_surface.PresentModeFIFO:
		return gpu.PresentFIFO, true
	case khr_surface.PresentModeMailbox:
		return gpu.PresentMailbox, true
	case khr_surface.PresentModeImmediate:
		return gpu.PresentImmediate, true
	}
	return 0, false
}

func extentOf(e core1_0.Extent2D) gpu.Extent {
	// 0xFFFFFFFF comes through as -1.
	if e.Width == -1 && e.Height == -1 {
		return gpu.UndefinedExtent
	}
	return gpu.Extent{Width: e.Width, Height: e.Height}
}

func convExtent(e gpu.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: e.Width, Height: e.Height}
}

func convRect(r gpu.Rect) core1_0.Rect2D {
	return core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: r.X, Y: r.Y},
		Extent: core1_0.Extent2D{Width: r.Width, Height: r.Height},
	}
}

// check turns the result of a driver call into an error that
// callers can match with the gpu sentinels.
func check(res common.VkResult, err error, op string) error {
	switch res {
	case khr_swapchain.VKErrorOutOfDate:
		return errors.Mark(errors.Wrap(res.ToError(), op), gpu.ErrOutOfDate)
	case khr_swapchain.VKSuboptimal:
		return errors.Mark(errors.Newf("%s: %s", op, res), gpu.ErrSuboptimal)
	case core1_0.VKErrorDeviceLost:
		return errors.Mark(errors.Wrap(res.ToError(), op), gpu.ErrDeviceLost)
	case khr_surface.VKErrorSurfaceLost:
		return errors.Mark(errors.Wrap(res.ToError(), op), gpu.ErrSurfaceLost)
	}
	if err != nil {
		return errors.Wrap(err, op)
	}
	return nil
}
