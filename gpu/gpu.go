// Package gpu defines the device boundary consumed by the frame
// pipeline.
// It is designed so that an explicit graphics API (Vulkan, in
// package vkng) and a simulated device (package simgpu) can be
// driven by exactly the same synchronization code.
package gpu

// Destroyer is the interface that wraps the Destroy method.
// Destroying an object that is still referenced by pending
// GPU work is undefined behavior; callers must wait on the
// relevant fences first.
type Destroyer interface {
	Destroy()
}

// Fence is a CPU-waitable GPU completion signal.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled.
	// There is no timeout: waiting on a fence is the
	// backpressure point of the frame pipeline.
	Wait() error

	// Reset puts the fence back in the unsignaled state.
	Reset() error

	// Signaled reports whether the fence is signaled,
	// without blocking.
	Signaled() (bool, error)
}

// Semaphore is a GPU-side ordering primitive between queue
// operations (acquire→render, render→present).
// Semaphores are binary: each signal must be consumed by
// exactly one wait.
type Semaphore interface {
	Destroyer
}

// Image is a device image.
type Image interface {
	Destroyer
}

// ImageView is a view into an Image that can be used as an
// attachment.
type ImageView interface {
	Destroyer
}

// DescriptorLayout describes the shape of descriptor sets.
type DescriptorLayout interface {
	Destroyer
}

// DescriptorSet is a set of descriptors allocated from a
// DescriptorPool. It has no Destroy method: sets are
// reclaimed when their pool is reset.
type DescriptorSet interface{}

// DescriptorPool is a transient pool of descriptor sets.
type DescriptorPool interface {
	Destroyer

	// Allocate allocates a new descriptor set with the
	// given layout.
	Allocate(layout DescriptorLayout) (DescriptorSet, error)

	// Reset returns every set allocated from the pool
	// back to it.
	Reset() error
}

// CmdBuffer is the interface that defines a command buffer.
// Recording methods other than Begin, End and Reset are
// only valid while the command buffer is recording.
type CmdBuffer interface {
	Destroyer

	// Reset discards any recorded commands.
	Reset() error

	// Begin prepares the command buffer for recording of
	// a one-time submission.
	Begin() error

	// End ends recording.
	End() error

	// Barrier records image memory barriers.
	Barrier(b ...ImageBarrier)

	// BeginRendering begins a dynamic rendering bracket.
	BeginRendering(info RenderingInfo)

	// EndRendering ends the current rendering bracket.
	EndRendering()

	SetViewport(vp Viewport)
	SetScissor(sciss Rect)
	PushConstants(stages ShaderStage, offset int, data []byte)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance int)

	// DrawMeshTasks dispatches mesh shader work groups. It is
	// only valid if the device reports Features.MeshShader.
	DrawMeshTasks(groupCountX, groupCountY, groupCountZ int)
}

// Swapchain is the set of presentable images negotiated with
// the window-system surface.
type Swapchain interface {
	Destroyer

	// Images returns the presentable images.
	// The slice is owned by the swapchain and remains valid
	// until Destroy is called.
	Images() []Image

	// Format returns the color format of the images.
	Format() Format

	// Extent returns the extent of the images.
	Extent() Extent

	// Acquire returns the index of the next presentable
	// image. The given semaphore is signaled when the
	// image can actually be written.
	// ErrOutOfDate means that no image was acquired.
	// ErrSuboptimal means that an image was acquired (the
	// returned index is valid and the semaphore will be
	// signaled) but the swapchain no longer matches the
	// surface.
	Acquire(sem Semaphore) (int, error)
}

// Device is the interface that a GPU backend implements.
// Callers should assume that Device methods are not safe
// for parallel execution, unless stated otherwise.
type Device interface {
	// Features returns the optional capabilities
	// negotiated when the device was created.
	Features() Features

	// SurfaceCapabilities queries the presentable
	// surface.
	SurfaceCapabilities() (SurfaceCapabilities, error)

	// NewSwapchain creates a swapchain.
	// If cfg.Old is not nil, it is retired by the new
	// swapchain but not destroyed.
	NewSwapchain(cfg SwapchainConfig) (Swapchain, error)

	NewImageView(img Image, format Format, aspect Aspect) (ImageView, error)
	NewDepthImage(extent Extent, format Format) (Image, error)
	NewFence(signaled bool) (Fence, error)
	NewSemaphore() (Semaphore, error)
	NewCmdBuffer() (CmdBuffer, error)
	NewDescriptorPool(sizes DescriptorPoolSizes) (DescriptorPool, error)
	NewDescriptorLayout(bindings []DescriptorBinding) (DescriptorLayout, error)

	// Submit submits work to the graphics queue.
	// Any of the fields of info may be nil, in which case
	// the submission has no corresponding dependency.
	Submit(info SubmitInfo) error

	// Present queues the presentation of a swapchain
	// image. It reports staleness exactly as
	// Swapchain.Acquire does.
	Present(info PresentInfo) error

	// WaitIdle blocks until the device has no pending
	// work.
	WaitIdle() error

	// Close destroys the device. Every object created
	// from it must have been destroyed.
	Close()
}
