package gpu

import "fmt"

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width, Height int
}

// Degenerate reports whether e has no area, which is what a
// minimized window reports.
func (e Extent) Degenerate() bool { return e.Width <= 0 || e.Height <= 0 }

// Clamp clamps e into [min, max], component-wise.
func (e Extent) Clamp(min, max Extent) Extent {
	return Extent{
		Width:  clamp(e.Width, min.Width, max.Width),
		Height: clamp(e.Height, min.Height, max.Height),
	}
}

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

func clamp(v, lo, hi int) int {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// UndefinedExtent is reported as SurfaceCapabilities.CurrentExtent
// when the surface size is determined by the swapchain extent.
var UndefinedExtent = Extent{Width: -1, Height: -1}

// Rect is a rectangle in framebuffer coordinates.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Viewport defines a viewport transform.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Format is the format of image data.
type Format int

// Formats.
const (
	FormatUndefined Format = iota
	FormatBGRA8SRGB
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatD16Unorm
	FormatD32Float
	FormatD24UnormS8
	FormatD32FloatS8
)

// IsDepth reports whether f is a depth(/stencil) format.
func (f Format) IsDepth() bool { return f >= FormatD16Unorm }

// HasStencil reports whether f has a stencil component.
func (f Format) HasStencil() bool { return f == FormatD24UnormS8 || f == FormatD32FloatS8 }

func (f Format) String() string {
	switch f {
	case FormatUndefined:
		return "Undefined"
	case FormatBGRA8SRGB:
		return "BGRA8SRGB"
	case FormatRGBA8SRGB:
		return "RGBA8SRGB"
	case FormatBGRA8Unorm:
		return "BGRA8Unorm"
	case FormatD16Unorm:
		return "D16Unorm"
	case FormatD32Float:
		return "D32Float"
	case FormatD24UnormS8:
		return "D24UnormS8"
	case FormatD32FloatS8:
		return "D32FloatS8"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Aspect selects the aspects of an image.
type Aspect int

// Aspects.
const (
	AspectColor Aspect = 1 << iota
	AspectDepth
	AspectStencil
)

// Layout is the layout of an image in device memory.
type Layout int

// Layouts.
const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutPresent
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "Undefined"
	case LayoutColorAttachment:
		return "ColorAttachment"
	case LayoutDepthAttachment:
		return "DepthAttachment"
	case LayoutPresent:
		return "Present"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// PipelineStage is a mask of pipeline stages.
type PipelineStage int

// Pipeline stages.
const (
	StageNone      PipelineStage = 0
	StageTopOfPipe PipelineStage = 1 << iota
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorAttachmentOutput
	StageBottomOfPipe
)

// Access is a mask of memory access types.
type Access int

// Access types.
const (
	AccessNone                Access = 0
	AccessColorAttachmentRead Access = 1 << iota
	AccessColorAttachmentWrite
	AccessDepthStencilAttachmentRead
	AccessDepthStencilAttachmentWrite
)

// ShaderStage is a mask of shader stages.
type ShaderStage int

// Shader stages.
const (
	ShaderVertex ShaderStage = 1 << iota
	ShaderFragment
	ShaderTask
	ShaderMesh
	ShaderCompute
)

// ImageBarrier is an image memory barrier together with the
// execution dependency that scopes it.
type ImageBarrier struct {
	Image     Image
	Aspect    Aspect
	OldLayout Layout
	NewLayout Layout
	SrcStage  PipelineStage
	DstStage  PipelineStage
	SrcAccess Access
	DstAccess Access
}

// LoadOp is the operation applied to an attachment when a
// rendering bracket begins.
type LoadOp int

// Load operations.
const (
	LoadClear LoadOp = iota
	LoadKeep
	LoadDontCare
)

// StoreOp is the operation applied to an attachment when a
// rendering bracket ends.
type StoreOp int

// Store operations.
const (
	StoreKeep StoreOp = iota
	StoreDontCare
)

// ColorAttachment is the color target of a rendering bracket.
type ColorAttachment struct {
	View   ImageView
	Format Format
	Load   LoadOp
	Store  StoreOp
	Clear  [4]float32
}

// DepthAttachment is the depth target of a rendering bracket.
type DepthAttachment struct {
	View         ImageView
	Format       Format
	Load         LoadOp
	Store        StoreOp
	ClearDepth   float32
	ClearStencil uint32
}

// RenderingInfo describes a dynamic rendering bracket.
type RenderingInfo struct {
	Area  Rect
	Color ColorAttachment
	// Depth is nil when rendering has no depth target.
	Depth *DepthAttachment
}

// SubmitInfo describes a graphics queue submission.
type SubmitInfo struct {
	Wait      Semaphore
	WaitStage PipelineStage
	Cmd       CmdBuffer
	Signal    Semaphore
	Fence     Fence
}

// PresentInfo describes a presentation request.
type PresentInfo struct {
	Wait      Semaphore
	Swapchain Swapchain
	Index     int
}

// PresentMode is the presentation mode of a swapchain.
type PresentMode int

// Present modes.
const (
	PresentFIFO PresentMode = iota
	PresentMailbox
	PresentImmediate
)

func (m PresentMode) String() string {
	switch m {
	case PresentFIFO:
		return "FIFO"
	case PresentMailbox:
		return "Mailbox"
	case PresentImmediate:
		return "Immediate"
	}
	return fmt.Sprintf("PresentMode(%d)", int(m))
}

// SwapchainConfig holds the parameters of NewSwapchain.
type SwapchainConfig struct {
	Extent      Extent
	ImageCount  int
	Format      Format
	PresentMode PresentMode
	// Old is the swapchain being replaced, if any.
	Old Swapchain
}

// SurfaceCapabilities are the limits of a presentable surface.
type SurfaceCapabilities struct {
	MinImageCount int
	// MaxImageCount is zero when there is no limit.
	MaxImageCount  int
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
	// Transforms is a backend-specific mask of the
	// supported surface transforms.
	Transforms       uint32
	CurrentTransform uint32
	Formats          []Format
	PresentModes     []PresentMode
}

// Features are the optional capabilities negotiated with the
// device. They decide which optional barriers and attachments
// are valid.
type Features struct {
	DynamicRendering bool
	DepthAttachment  bool
	MeshShader       bool
}

// DescriptorType is the type of a descriptor.
type DescriptorType int

// Descriptor types.
const (
	DescUniformBuffer DescriptorType = iota
	DescStorageBuffer
	DescCombinedImageSampler
)

// DescriptorBinding is a binding of a DescriptorLayout.
type DescriptorBinding struct {
	Binding int
	Type    DescriptorType
	Count   int
	Stages  ShaderStage
}

// DescriptorPoolSizes is the capacity of a DescriptorPool.
type DescriptorPoolSizes struct {
	MaxSets        int
	UniformBuffers int
	StorageBuffers int
	Samplers       int
}
